package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubBucket struct {
	result *RateLimitResult
	err    error
	keys   []string
}

func (s *stubBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

func newRouter(l *PublicLimiter) (*gin.Engine, *[]error) {
	gin.SetMode(gin.TestMode)
	var seen []error
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			seen = append(seen, e.Err)
		}
		if len(c.Errors) > 0 && !c.Writer.Written() {
			c.Status(http.StatusTooManyRequests)
		}
	})
	r.POST("/auth/login", l.Middleware("login"), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, &seen
}

func TestMiddlewareRejectsWhenBucketEmpty(t *testing.T) {
	bucket := &stubBucket{result: &RateLimitResult{Allowed: false, Limit: 5, RetryAfter: 1500 * time.Millisecond}}
	router, seen := newRouter(newPublicLimiter(bucket, zap.NewNop(), nil, 1, 5))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Len(t, *seen, 1)
	assert.ErrorIs(t, (*seen)[0], errs.ErrRateLimited)
	require.Len(t, bucket.keys, 1)
	assert.Contains(t, bucket.keys[0], "ratelimit:public:login:")
}

func TestMiddlewareFailsOpenOnRedisError(t *testing.T) {
	bucket := &stubBucket{err: errors.New("connection refused")}
	router, _ := newRouter(newPublicLimiter(bucket, zap.NewNop(), nil, 1, 5))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDisabledLimiterPassesThrough(t *testing.T) {
	limiter, err := NewPublicLimiter(PublicParams{Config: config.Config{}, Log: zap.NewNop()})
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	router, _ := newRouter(limiter)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnabledLimiterRequiresRedis(t *testing.T) {
	var cfg config.Config
	cfg.RateLimit.Enabled = true
	_, err := NewPublicLimiter(PublicParams{Config: cfg, Log: zap.NewNop()})
	assert.Error(t, err)
}

func TestIssuanceGuardDefaultsToNoop(t *testing.T) {
	guard := NewIssuanceGuard(IssuanceParams{Config: config.Config{}, Log: zap.NewNop()})
	release, err := guard.Acquire(context.Background(), "invitation:1:bob@x.com")
	require.NoError(t, err)
	release()

	_, err = OrNoop(nil).Acquire(context.Background(), "x")
	assert.NoError(t, err)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, defaultBucketTTL(1, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
}
