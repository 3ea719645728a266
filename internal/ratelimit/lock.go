package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyIssuanceLock = "issuance:lock:%s"

// Deletes the key only while it still carries the holder id, so a lease that
// outlived its TTL cannot drop a lock another request now owns.
var releaseIssuanceLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// lease is a held issuance lock.
type lease struct {
	key    string
	holder string
}

type issuanceLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func newIssuanceLocker(client redis.UniversalClient, ttl time.Duration) *issuanceLocker {
	return &issuanceLocker{client: client, ttl: ttl}
}

func issuanceLockKey(scope string) string {
	return fmt.Sprintf(keyIssuanceLock, strings.ToLower(strings.TrimSpace(scope)))
}

// acquire reports false when another request holds the scope.
func (l *issuanceLocker) acquire(ctx context.Context, scope string) (*lease, bool, error) {
	if strings.TrimSpace(scope) == "" {
		return nil, false, errors.New("issuance scope is empty")
	}
	if l.ttl <= 0 {
		return nil, false, errors.New("issuance lock ttl must be positive")
	}

	held := &lease{key: issuanceLockKey(scope), holder: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, held.key, held.holder, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return held, true, nil
}

func (l *issuanceLocker) release(ctx context.Context, held *lease) error {
	if held == nil {
		return nil
	}
	return releaseIssuanceLock.Run(ctx, l.client, []string{held.key}, held.holder).Err()
}
