package token

import (
	"time"

	"github.com/smallbiznis/carebridge/internal/config"
)

// Policy holds the temporal and usage rules of one token kind.
type Policy struct {
	TTL            time.Duration
	Grace          time.Duration
	MaxAttempts    int
	MaxIssuances   int
	IssuanceWindow time.Duration
}

// Record is the common shape of every token-backed row.
type Record interface {
	TokenExpiresAt() *time.Time
	TokenUsed() bool
	TokenUsedAt() *time.Time
	// GraceEligible is false for records invalidated by a newer issuance.
	GraceEligible() bool
}

type Reason string

const (
	ReasonNone    Reason = ""
	ReasonUsed    Reason = "used"
	ReasonExpired Reason = "expired"
)

type Validity struct {
	Valid bool
	// RecentlyUsed marks a used record still inside its grace window.
	RecentlyUsed bool
	Reason       Reason
}

// ExpiresAt returns the deadline for a record issued at now, or nil when the
// policy has no TTL.
func (p Policy) ExpiresAt(now time.Time) *time.Time {
	if p.TTL <= 0 {
		return nil
	}
	t := now.Add(p.TTL)
	return &t
}

// Evaluate applies the expiry and single-use rules to rec. Expiry wins over
// use state when both apply.
func (p Policy) Evaluate(rec Record, now time.Time) Validity {
	if exp := rec.TokenExpiresAt(); exp != nil && !exp.After(now) {
		return Validity{Reason: ReasonExpired}
	}
	if !rec.TokenUsed() {
		return Validity{Valid: true}
	}
	if p.InGrace(rec, now) {
		return Validity{Valid: true, RecentlyUsed: true}
	}
	return Validity{Reason: ReasonUsed}
}

// InGrace reports whether a used record is still inside the grace window.
func (p Policy) InGrace(rec Record, now time.Time) bool {
	if p.Grace <= 0 || !rec.TokenUsed() || !rec.GraceEligible() {
		return false
	}
	usedAt := rec.TokenUsedAt()
	if usedAt == nil {
		return false
	}
	return now.Sub(*usedAt) < p.Grace
}

// Policies resolves the current policy per kind from the hot-reloadable holder.
type Policies struct {
	holder *config.PolicyHolder
}

// NewPolicies accepts a nil holder, which yields the defaults.
func NewPolicies(holder *config.PolicyHolder) *Policies {
	return &Policies{holder: holder}
}

func (p *Policies) For(kind Kind) Policy {
	var cfg config.PolicyConfig
	if p == nil {
		cfg = config.DefaultPolicyConfig()
	} else {
		cfg = p.holder.Get()
	}
	switch kind {
	case KindInvitation:
		return Policy(cfg.Invitation)
	case KindPartnership:
		return Policy(cfg.Partnership)
	case KindShare:
		return Policy(cfg.Share)
	case KindPasswordReset:
		return Policy(cfg.PasswordReset)
	case KindOTP:
		return Policy(cfg.OTP)
	default:
		return Policy{}
	}
}
