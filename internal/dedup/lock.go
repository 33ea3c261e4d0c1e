package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Locker is a cross-process lock over one identity key. Acquire blocks
// until the lock is held or ctx is done; the returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

const (
	lockKeyPrefix     = "leadflow:dedup:"
	lockRetryInterval = 50 * time.Millisecond
	lockMaxTTL        = 30 * time.Second
)

// RedisLocker implements Locker with SET NX. The TTL caps how long a
// crashed holder can block other processes.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 || ttl > lockMaxTTL {
		ttl = lockMaxTTL
	}
	redisKey := lockKeyPrefix + key

	for {
		ok, err := l.client.SetNX(ctx, redisKey, 1, ttl).Result()
		if err != nil {
			return nil, eris.Wrap(err, "dedup: redis setnx")
		}
		if ok {
			return func() {
				// Best effort; the TTL reclaims the lock if this fails.
				_ = l.client.Del(context.Background(), redisKey).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "dedup: lock wait")
		case <-time.After(lockRetryInterval):
		}
	}
}
