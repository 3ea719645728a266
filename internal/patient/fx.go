package patient

import (
	"github.com/smallbiznis/carebridge/internal/patient/domain"
	"github.com/smallbiznis/carebridge/internal/patient/service"
	"github.com/smallbiznis/carebridge/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("patient.service",
	fx.Provide(repository.ProvideStore[domain.Patient]),
	fx.Provide(service.NewService),
)
