package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carebridge/internal/errs"
)

type Service interface {
	CreateShare(ctx context.Context, patientID snowflake.ID, req CreateShareRequest) (*ShareResult, error)
	RevokeShare(ctx context.Context, shareID snowflake.ID) error

	Request(ctx context.Context, req RequestAccess) (*RequestResult, error)
	Approve(ctx context.Context, grantID snowflake.ID, req ApproveRequest) (*TokenAccessGrant, error)
	Deny(ctx context.Context, grantID snowflake.ID, reason string) (*TokenAccessGrant, error)
	Revoke(ctx context.Context, grantID snowflake.ID) (*TokenAccessGrant, error)

	ListForPatient(ctx context.Context, patientID snowflake.ID) ([]GrantView, error)
	ListMine(ctx context.Context) ([]GrantView, error)
	ListPending(ctx context.Context) ([]GrantView, error)

	// CheckAccess is true for members of the owning organization and for
	// holders of a live grant carrying permission.
	CheckAccess(ctx context.Context, patientID snowflake.ID, permission string) (bool, error)
}

type CreateShareRequest struct {
	// ExpiresInDays leaves the share open-ended when nil.
	ExpiresInDays *int `json:"expires_in_days"`
}

type ShareResult struct {
	Share *PatientShare `json:"share"`
	Token string        `json:"token"`
}

type RequestAccess struct {
	ShareToken  string       `json:"share_token"`
	Message     string       `json:"message"`
	Permissions []Permission `json:"permissions"`
}

type RequestResult struct {
	Grant *TokenAccessGrant `json:"grant"`
	// AlreadyGranted means a live grant existed and nothing was created.
	AlreadyGranted bool `json:"already_granted"`
}

type ApproveRequest struct {
	Permissions []Permission `json:"permissions"`
	// ExpiresInDays nil approves without a deadline.
	ExpiresInDays *int `json:"expires_in_days"`
}

var (
	ErrShareNotFound     = errs.New(errs.KindNotFound, "share link not found")
	ErrShareExpired      = errs.New(errs.KindExpired, "this share link has expired")
	ErrGrantNotFound     = errs.New(errs.KindNotFound, "access grant not found")
	ErrPatientNotFound   = errs.New(errs.KindNotFound, "patient not found")
	ErrNoOrganization    = errs.New(errs.KindInvariantViolation, "you must belong to an organization to request access")
	ErrSameOrganization  = errs.New(errs.KindInvariantViolation, "your organization already owns this patient")
	ErrGrantPending      = errs.New(errs.KindAlreadyPending, "an access request for this patient is already pending")
	ErrNotPending        = errs.New(errs.KindInvariantViolation, "only pending requests can be decided")
	ErrNotApproved       = errs.New(errs.KindInvariantViolation, "only approved grants can be revoked")
	ErrInvalidPermission = errs.New(errs.KindInvalidArgument, "permissions must be drawn from view, comment, view_medications")
	ErrInvalidExpiryDays = errs.New(errs.KindInvalidArgument, "expiry must be between 1 and 3650 days")
)
