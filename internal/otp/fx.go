package otp

import (
	"github.com/smallbiznis/carebridge/internal/otp/repository"
	"github.com/smallbiznis/carebridge/internal/otp/service"
	"go.uber.org/fx"
)

var Module = fx.Module("otp.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
