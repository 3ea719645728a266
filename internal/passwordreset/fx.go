package passwordreset

import (
	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	"github.com/smallbiznis/carebridge/internal/passwordreset/domain"
	"github.com/smallbiznis/carebridge/internal/passwordreset/repository"
	"github.com/smallbiznis/carebridge/internal/passwordreset/service"
	"go.uber.org/fx"
)

var Module = fx.Module("passwordreset.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(func(auth authdomain.Service) domain.CredentialRotator { return auth }),
)
