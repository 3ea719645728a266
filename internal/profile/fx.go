package profile

import (
	"github.com/smallbiznis/carebridge/internal/profile/repository"
	"github.com/smallbiznis/carebridge/internal/profile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("profile.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
