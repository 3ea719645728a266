package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/carebridge/internal/errs"
)

type Service interface {
	Generate(ctx context.Context) (*IssueResult, error)
	Verify(ctx context.Context, code string) (*VerifyResult, error)
	// Resend behaves as Generate inside the issuance window limit.
	Resend(ctx context.Context) (*IssueResult, error)
	Status(ctx context.Context) (*StatusResult, error)
}

type IssueResult struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyResult struct {
	Verified bool `json:"verified"`
}

type StatusResult struct {
	State             State      `json:"state"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	AttemptsRemaining int        `json:"attempts_remaining,omitempty"`
}

var (
	ErrNotRequired     = errs.New(errs.KindInvariantViolation, "OTP verification is not required for this account")
	ErrNoActiveCode    = errs.New(errs.KindNotFound, "no active verification code, request a new one")
	ErrCodeExpired     = errs.New(errs.KindExpired, "verification code has expired")
	ErrTooManyAttempts = errs.New(errs.KindTooManyAttempts, "too many failed attempts, request a new code")
	ErrInvalidCode     = errs.New(errs.KindInvalidCode, "invalid verification code")
	ErrRateLimited     = errs.New(errs.KindRateLimited, "too many codes requested, try again in a few minutes")
)
