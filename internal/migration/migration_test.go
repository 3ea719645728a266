package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/carebridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(embeddedMigrations, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestLegacyBackfillCoversBothFields(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000002_normalize_legacy_fields.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "WHEN requires_otp_verification IS NULL THEN 'legacy'")
	assert.Contains(t, sql, "SET code = otp")
}

func TestAutoMigrateCreatesEveryTable(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))

	for _, table := range []string{
		"users",
		"sessions",
		"organizations",
		"user_profiles",
		"audit_logs",
		"member_invitations",
		"organization_partnerships",
		"patients",
		"patient_shares",
		"token_access_grants",
		"password_reset_tokens",
		"otp_verifications",
		"notification_jobs",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
