package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{sql: `SELECT * FROM "token_access_grants" WHERE id = $1`, op: "SELECT", table: "token_access_grants"},
		{sql: `INSERT INTO "member_invitations" ("id") VALUES ($1)`, op: "INSERT", table: "member_invitations"},
		{sql: `UPDATE "otp_codes" SET "attempts"=$1 WHERE id = $2`, op: "UPDATE", table: "otp_codes"},
		{sql: `DELETE FROM "notification_jobs" WHERE status = $1`, op: "DELETE", table: "notification_jobs"},
		{sql: `WITH recent AS (SELECT 1) SELECT * FROM "password_reset_tokens"`, op: "SELECT", table: "password_reset_tokens"},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		assert.Equal(t, tc.op, op, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestTraceSkipsRecordNotFoundByDefault(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())
	sql := func() (string, int64) { return `SELECT * FROM "password_reset_tokens"`, 0 }

	l.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
	if assert.Equal(t, 1, logs.Len()) {
		entry := logs.All()[0]
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Equal(t, "password_reset_tokens", entry.ContextMap()["table"])
	}
}

func TestParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(zap.NewNop(), DefaultGormLoggerConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT 1 WHERE email = ?", "patient@example.com")
	assert.Equal(t, "SELECT 1 WHERE email = ?", sql)
	assert.Nil(t, params)
}
