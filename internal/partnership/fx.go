package partnership

import (
	"github.com/smallbiznis/carebridge/internal/partnership/repository"
	"github.com/smallbiznis/carebridge/internal/partnership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("partnership.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
