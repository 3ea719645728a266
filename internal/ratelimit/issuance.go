package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// IssuanceGuard serializes token issuance for one scope, for example an
// organization and email pair. Release is always safe to call.
type IssuanceGuard interface {
	Acquire(ctx context.Context, scope string) (release func(), err error)
}

type noopGuard struct{}

func (noopGuard) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// NoopGuard keeps the plain check-then-act behaviour.
func NoopGuard() IssuanceGuard { return noopGuard{} }

// OrNoop returns g, or NoopGuard when g is nil.
func OrNoop(g IssuanceGuard) IssuanceGuard {
	if g == nil {
		return NoopGuard()
	}
	return g
}

type IssuanceParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

// NewIssuanceGuard returns the redis-backed guard only when
// RATE_LIMIT_ISSUANCE_LOCK is enabled.
func NewIssuanceGuard(p IssuanceParams) IssuanceGuard {
	if !p.Config.RateLimit.IssuanceLock || p.Client == nil {
		return NoopGuard()
	}
	ttl := p.Config.RateLimit.IssuanceLockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &lockGuard{
		locker: newIssuanceLocker(p.Client, ttl),
		log:    p.Log.Named("ratelimit.issuance"),
	}
}

type lockGuard struct {
	locker *issuanceLocker
	log    *zap.Logger
}

func (g *lockGuard) Acquire(ctx context.Context, scope string) (func(), error) {
	held, ok, err := g.locker.acquire(ctx, scope)
	if err != nil {
		// Redis trouble degrades to the unguarded path.
		g.log.Warn("issuance lock unavailable", zap.String("scope", scope), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return func() {}, errs.New(errs.KindRateLimited, "a request for this is already in progress")
	}
	return func() {
		if err := g.locker.release(context.Background(), held); err != nil {
			g.log.Warn("issuance lock release failed", zap.String("scope", scope), zap.Error(err))
		}
	}, nil
}
