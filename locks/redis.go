package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// compare-and-delete: only the holder's token may remove the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

const (
	defaultLeaseTTL   = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	keyPrefix         = "bracket:lock:"
)

// RedisLocker holds keys across instances with SET NX PX leases. A lease
// expires after TTL when its holder dies.
type RedisLocker struct {
	rdb        *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
	log        *zap.Logger
}

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

func WithRetryDelay(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.retryDelay = d }
}

func NewRedisLocker(rdb *redis.Client, log *zap.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{rdb: rdb, ttl: defaultLeaseTTL, retryDelay: defaultRetryDelay, log: log}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *RedisLocker) try(ctx context.Context, key string) (Release, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be canceled
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{keyPrefix + key}, token).Err(); err != nil {
				l.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, true, nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (Release, bool, error) {
	return l.try(ctx, key)
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()
	for {
		release, ok, err := l.try(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}
