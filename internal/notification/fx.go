package notification

import (
	"github.com/smallbiznis/carebridge/internal/notification/domain"
	"github.com/smallbiznis/carebridge/internal/notification/repository"
	"github.com/smallbiznis/carebridge/internal/notification/service"
	"github.com/smallbiznis/carebridge/internal/notification/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(repository.NewRepository),
	fx.Provide(
		service.NewDispatcher,
		func(d *service.OutboxDispatcher) domain.Dispatcher { return d },
	),
	fx.Provide(worker.New),
	fx.Invoke(worker.Register),
)
