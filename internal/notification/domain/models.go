// Package domain defines the deferred notification contract and the
// outbox rows that back it.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Kind string

const (
	KindInvitation      Kind = "invitation"
	KindPasswordReset   Kind = "password_reset"
	KindOTP             Kind = "otp"
	KindAccessRequested Kind = "access_requested"
	KindAccessDecided   Kind = "access_decided"
	KindPartnership     Kind = "partnership"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInvitation, KindPasswordReset, KindOTP, KindAccessRequested, KindAccessDecided, KindPartnership:
		return true
	}
	return false
}

// Payload is rendered into the kind's template. The "to" key carries the
// recipient address.
type Payload map[string]any

func (p Payload) Recipient() string {
	to, _ := p["to"].(string)
	return to
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

type NotificationJob struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	JobID     string            `gorm:"column:job_id;type:text;not null;uniqueIndex" json:"job_id"`
	Kind      Kind              `gorm:"column:kind;type:text;not null" json:"kind"`
	Payload   datatypes.JSONMap `gorm:"column:payload" json:"-"`
	Status    Status            `gorm:"column:status;type:text;not null;index" json:"status"`
	Attempts  int               `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError *string           `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	RunAfter  time.Time         `gorm:"column:run_after;not null;index" json:"run_after"`
	SentAt    *time.Time        `gorm:"column:sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (NotificationJob) TableName() string { return "notification_jobs" }

// Dispatcher schedules a notification and returns its job id without
// waiting for delivery.
type Dispatcher interface {
	Schedule(ctx context.Context, kind Kind, payload Payload) (string, error)
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Enqueue(ctx context.Context, job *NotificationJob) error
	// ListDue returns jobs ready for delivery. Processing jobs last touched
	// before staleBefore are returned again so a crashed worker's claims
	// are not lost.
	ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]NotificationJob, error)
	// Claim moves a pending or stale processing job to processing and
	// reports whether this caller won it.
	Claim(ctx context.Context, id snowflake.ID, now, staleBefore time.Time) (bool, error)
	MarkSent(ctx context.Context, id snowflake.ID, now time.Time) error
	MarkRetry(ctx context.Context, id snowflake.ID, attempts int, lastErr string, runAfter time.Time, now time.Time) error
	MarkFailed(ctx context.Context, id snowflake.ID, attempts int, lastErr string, now time.Time) error
	CountPending(ctx context.Context) (int64, error)
}

var (
	ErrUnknownKind      = errors.New("notification_unknown_kind")
	ErrMissingRecipient = errors.New("notification_missing_recipient")
)
