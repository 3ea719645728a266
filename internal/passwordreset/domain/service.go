package domain

import (
	"context"

	"github.com/smallbiznis/carebridge/internal/errs"
)

type Service interface {
	// Request always returns the same result whether or not email exists.
	Request(ctx context.Context, email string) (*RequestResult, error)
	// Verify reports token state and never errors for unknown or expired tokens.
	Verify(ctx context.Context, token string) (*VerifyResult, error)
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error)
}

// CredentialRotator applies the new password to the identity provider.
type CredentialRotator interface {
	RotateCredential(ctx context.Context, email string, newPassword string) error
}

type RequestResult struct {
	Message string `json:"message"`
}

type VerifyResult struct {
	Valid        bool   `json:"valid"`
	Email        string `json:"email,omitempty"`
	RecentlyUsed bool   `json:"recently_used"`
	Error        string `json:"error,omitempty"`
}

type CompleteRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type CompleteResult struct {
	Success           bool   `json:"success"`
	Email             string `json:"email"`
	CredentialRotated bool   `json:"credential_rotated"`
}

const RequestMessage = "If an account exists for that email, a reset link has been sent."

var (
	ErrTokenNotFound   = errs.New(errs.KindNotFound, "reset link is invalid")
	ErrTokenUsed       = errs.New(errs.KindAlreadyUsed, "this reset link has already been used")
	ErrTokenExpired    = errs.New(errs.KindExpired, "this reset link has expired")
	ErrWeakPassword    = errs.New(errs.KindInvalidArgument, "password must be at least 8 characters")
	ErrAccountNotFound = errs.New(errs.KindNotFound, "account not found")
)
