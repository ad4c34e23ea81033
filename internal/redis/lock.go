package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("hospital lock not acquired")
)

// Locker guards the quota fallback path so that the count-then-allow
// check for one hospital cannot run concurrently across instances.
type Locker interface {
	WithHospitalLock(ctx context.Context, hospitalID string, fn func(ctx context.Context) error) error
}

type redisHospitalLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHospitalLocker creates a locker that uses a per hospital Redis key
func NewRedisHospitalLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisHospitalLocker{
		client: client,
		ttl:    ttl,
	}
}

const lockRetryInterval = 20 * time.Millisecond

func (l *redisHospitalLocker) WithHospitalLock(ctx context.Context, hospitalID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:hospital:%s", hospitalID)
	token := uuid.NewString()

	// Contenders wait their turn rather than bouncing: a booking burst
	// against one hospital must drain the quota, not error out. The wait
	// is bounded by the caller's context.
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire hospital lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return ErrLockNotAcquired
		case <-time.After(lockRetryInterval):
		}
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisHospitalLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release hospital lock: %w", err)
	}
	return nil
}
