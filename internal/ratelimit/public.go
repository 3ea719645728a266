package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/errs"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPublicEndpoint = "ratelimit:public:%s:%s"

// Allower is satisfied by *TokenBucket.
type Allower interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error)
}

type PublicParams struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Client  *redis.Client       `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// PublicLimiter throttles unauthenticated endpoints (login, signup, reset,
// invitation lookup) per client IP.
type PublicLimiter struct {
	enabled bool
	bucket  Allower
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	rate    float64
	burst   int
}

func NewPublicLimiter(p PublicParams) (*PublicLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return &PublicLimiter{}, nil
	}
	if p.Client == nil {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PublicRate <= 0 || limitCfg.PublicBurst <= 0 {
		return nil, errors.New("public rate limit must be positive")
	}
	return newPublicLimiter(NewTokenBucket(p.Client), p.Log, p.Metrics, limitCfg.PublicRate, limitCfg.PublicBurst), nil
}

func newPublicLimiter(bucket Allower, log *zap.Logger, metrics *obsmetrics.Metrics, rate float64, burst int) *PublicLimiter {
	return &PublicLimiter{
		enabled: true,
		bucket:  bucket,
		log:     log.Named("ratelimit.public"),
		metrics: metrics,
		rate:    rate,
		burst:   burst,
	}
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Middleware rejects requests over the limit with errs.ErrRateLimited.
// Redis failures let the request through.
func (l *PublicLimiter) Middleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Enabled() {
			c.Next()
			return
		}

		key := fmt.Sprintf(keyPublicEndpoint, endpoint, strings.TrimSpace(c.ClientIP()))
		res, err := l.bucket.Allow(c.Request.Context(), key, l.rate, l.burst)
		if err != nil {
			l.log.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			l.metrics.RecordRateLimitDenied(c.Request.Context(), endpoint, "public_bucket")
			_ = c.Error(errs.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
