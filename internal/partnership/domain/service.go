package domain

import (
	"context"

	"github.com/smallbiznis/carebridge/internal/errs"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Accept(ctx context.Context, token string) (*Partnership, error)
	Reject(ctx context.Context, token string) (*Partnership, error)
	List(ctx context.Context) ([]View, error)
}

type CreateRequest struct {
	// PartnerEmail optionally receives the token by email.
	PartnerEmail string
}

type CreateResult struct {
	Partnership           *Partnership `json:"partnership"`
	Token                 string       `json:"token"`
	NotificationScheduled bool         `json:"notification_scheduled"`
}

var (
	ErrPartnershipNotFound = errs.New(errs.KindNotFound, "partnership not found")
	ErrPartnershipUsed     = errs.New(errs.KindAlreadyUsed, "this partnership code has already been used")
	ErrPartnershipExpired  = errs.New(errs.KindExpired, "this partnership code has expired")
	ErrSelfPartnership     = errs.New(errs.KindInvariantViolation, "an organization cannot partner with itself")
	ErrAlreadyPartners     = errs.New(errs.KindAlreadyExists, "these organizations are already partners")
	ErrNoOrganization      = errs.New(errs.KindNotFound, "you do not belong to an organization")
)
