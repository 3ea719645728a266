// Package seed bootstraps a demo clinic for local development.
package seed

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	"github.com/smallbiznis/carebridge/internal/config"
	signupdomain "github.com/smallbiznis/carebridge/internal/signup/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultOrgName    = "Demo Clinic"
	defaultAdminEmail = "admin@carebridge.local"
	defaultAdminFirst = "Demo"
	defaultAdminLast  = "Admin"
)

// UserFinder is the slice of the auth service the seeder needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
}

var Module = fx.Module("seed",
	fx.Invoke(register),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Auth      authdomain.Service
	Signup    signupdomain.Service
}

func register(p Params) {
	if !p.Config.Seed.Enabled || p.Config.IsProduction() {
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return EnsureDemoClinic(ctx, p.Auth, p.Signup, p.Config.Seed.AdminPassword, p.Log)
		},
	})
}

// EnsureDemoClinic signs up the demo owner and founds the demo clinic once.
// It goes through the signup workflow so the seeded account is
// indistinguishable from a real one.
func EnsureDemoClinic(ctx context.Context, users UserFinder, signup signupdomain.Service, password string, log *zap.Logger) error {
	log = log.Named("seed")

	if _, err := users.FindByEmail(ctx, defaultAdminEmail); err == nil {
		log.Debug("demo clinic already seeded")
		return nil
	} else if !errors.Is(err, authdomain.ErrUserNotFound) {
		return err
	}

	result, err := signup.Signup(ctx, signupdomain.Request{
		Email:            defaultAdminEmail,
		Password:         password,
		FirstName:        defaultAdminFirst,
		LastName:         defaultAdminLast,
		OrganizationName: defaultOrgName,
	})
	if err != nil {
		return err
	}

	log.Info("seeded demo clinic",
		zap.String("email", defaultAdminEmail),
		zap.String("org_id", result.Organization.ID.String()),
	)
	return nil
}
