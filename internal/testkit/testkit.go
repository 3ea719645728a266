// Package testkit wires the shared services used by workflow tests on top
// of an in-memory sqlite database.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	auditrepo "github.com/smallbiznis/carebridge/internal/audit/repository"
	auditservice "github.com/smallbiznis/carebridge/internal/audit/service"
	"github.com/smallbiznis/carebridge/internal/authorization"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/identity"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	profilerepo "github.com/smallbiznis/carebridge/internal/profile/repository"
	profileservice "github.com/smallbiznis/carebridge/internal/profile/service"
	"github.com/smallbiznis/carebridge/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Epoch is the fake clock start used across workflow tests.
var Epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type Env struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Clock    *clock.FakeClock
	Node     *snowflake.Node
	Policies *config.PolicyHolder
	Profiles profiledomain.Service
	Audit    auditdomain.Service
	Authz    authorization.Service
}

// New migrates the shared tables plus any extra models.
func New(t *testing.T, models ...any) *Env {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)

	tables := []any{
		&profiledomain.UserProfile{},
		&orgdomain.Organization{},
		&auditdomain.AuditLog{},
	}
	require.NoError(t, conn.AutoMigrate(append(tables, models...)...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(Epoch)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clk,
	})

	enforcer, err := authorization.NewEnforcer(nil)
	require.NoError(t, err)

	return &Env{
		DB:       conn,
		Log:      log,
		Clock:    clk,
		Node:     node,
		Policies: config.NewStaticPolicyHolder(config.DefaultPolicyConfig()),
		Profiles: profileservice.NewService(log, profilerepo.NewRepository(conn), node, clk),
		Audit:    auditSvc,
		Authz: authorization.NewService(authorization.Params{
			DB:       conn,
			Log:      log,
			Enforcer: enforcer,
			AuditSvc: auditSvc,
		}),
	}
}

// As returns a context authenticated as userID.
func As(userID snowflake.ID) context.Context {
	return identity.WithUser(context.Background(), userID)
}

// SeedUser creates a profile outside any organization.
func (e *Env) SeedUser(t *testing.T, email string) *profiledomain.UserProfile {
	t.Helper()
	profile, err := e.Profiles.Create(context.Background(), profiledomain.CreateRequest{
		UserID: e.Node.Generate(),
		Email:  email,
	})
	require.NoError(t, err)
	return profile
}

// SeedOrganization creates an organization whose owner has the given email.
func (e *Env) SeedOrganization(t *testing.T, name, ownerEmail string) (*orgdomain.Organization, *profiledomain.UserProfile) {
	t.Helper()
	owner := e.SeedUser(t, ownerEmail)

	now := e.Clock.Now()
	org := &orgdomain.Organization{
		ID:        e.Node.Generate(),
		Name:      name,
		Slug:      name + "-" + e.Node.Generate().Base36(),
		OwnerID:   owner.UserID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.DB.Create(org).Error)
	require.NoError(t, e.Profiles.JoinOrganization(context.Background(), owner.UserID, org.ID, profiledomain.RoleOwner))

	owner, err := e.Profiles.GetByUserID(context.Background(), owner.UserID)
	require.NoError(t, err)
	return org, owner
}

// SeedMember adds a new user to orgID with role.
func (e *Env) SeedMember(t *testing.T, orgID snowflake.ID, email string, role profiledomain.Role) *profiledomain.UserProfile {
	t.Helper()
	member := e.SeedUser(t, email)
	require.NoError(t, e.Profiles.JoinOrganization(context.Background(), member.UserID, orgID, role))
	member, err := e.Profiles.GetByUserID(context.Background(), member.UserID)
	require.NoError(t, err)
	return member
}

// AuditActions lists the recorded actions for orgID, newest first.
func (e *Env) AuditActions(t *testing.T, orgID snowflake.ID) []string {
	t.Helper()
	var actions []string
	require.NoError(t, e.DB.Model(&auditdomain.AuditLog{}).
		Where("org_id = ?", orgID).
		Order("created_at DESC, id DESC").
		Pluck("action", &actions).Error)
	return actions
}
