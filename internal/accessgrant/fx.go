package accessgrant

import (
	"github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	"github.com/smallbiznis/carebridge/internal/accessgrant/repository"
	"github.com/smallbiznis/carebridge/internal/accessgrant/service"
	patientdomain "github.com/smallbiznis/carebridge/internal/patient/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("accessgrant.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) patientdomain.AccessChecker { return svc }),
)
