package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// releaseScript deletes the lock only if it still carries our token, so a
// holder whose TTL expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every API instance that talks to the same
// Redis. Each lock has a TTL so a crashed holder cannot wedge a doctor's day.
type RedisLocker struct {
	client   redis.Cmdable
	ttl      time.Duration
	minRetry time.Duration
	maxRetry time.Duration
	logger   *logging.Logger
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a lock survives a
// holder that never unlocks.
func NewRedisLocker(client redis.Cmdable, ttl time.Duration, logger *logging.Logger) *RedisLocker {
	if client == nil {
		panic("appointments: redis client required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		minRetry: 5 * time.Millisecond,
		maxRetry: 100 * time.Millisecond,
		logger:   logger,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	delay := l.minRetry
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("appointments: redis lock %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > l.maxRetry {
			delay = l.maxRetry
		}
	}
}

func (l *RedisLocker) unlockFunc(key, token string) func() {
	return func() {
		// The caller's context may already be done; release on a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Error("failed to release booking lock", "error", err, "key", key)
		}
	}
}
