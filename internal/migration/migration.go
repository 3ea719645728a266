package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accessgrantdomain "github.com/smallbiznis/carebridge/internal/accessgrant/domain"
	auditdomain "github.com/smallbiznis/carebridge/internal/audit/domain"
	authdomain "github.com/smallbiznis/carebridge/internal/auth/domain"
	invitationdomain "github.com/smallbiznis/carebridge/internal/invitation/domain"
	notificationdomain "github.com/smallbiznis/carebridge/internal/notification/domain"
	orgdomain "github.com/smallbiznis/carebridge/internal/organization/domain"
	otpdomain "github.com/smallbiznis/carebridge/internal/otp/domain"
	partnershipdomain "github.com/smallbiznis/carebridge/internal/partnership/domain"
	passwordresetdomain "github.com/smallbiznis/carebridge/internal/passwordreset/domain"
	patientdomain "github.com/smallbiznis/carebridge/internal/patient/domain"
	profiledomain "github.com/smallbiznis/carebridge/internal/profile/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations, including the
// backfill of legacy OTP fields.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&profiledomain.UserProfile{},
		&auditdomain.AuditLog{},
		&invitationdomain.MemberInvitation{},
		&partnershipdomain.Partnership{},
		&patientdomain.Patient{},
		&accessgrantdomain.PatientShare{},
		&accessgrantdomain.TokenAccessGrant{},
		&passwordresetdomain.ResetToken{},
		&otpdomain.Verification{},
		&notificationdomain.NotificationJob{},
	}
}

// AutoMigrate builds the schema from the models. It backs the sqlite and
// mysql dialects, which never carried the legacy fields.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
