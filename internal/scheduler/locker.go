package scheduler

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-co-op/gocron/v2"
	redis "github.com/redis/go-redis/v9"
)

const lockPrefix = "divan:job:"

// redisLocker makes a job run on one replica per tick.
type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func newRedisLocker(client *redis.Client, ttl time.Duration) *redisLocker {
	return &redisLocker{client: redislock.New(client), ttl: ttl}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	lock, err := l.client.Obtain(ctx, lockPrefix+key, l.ttl, nil)
	if err != nil {
		return nil, err
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l *redisLock) Unlock(ctx context.Context) error {
	return l.lock.Release(ctx)
}
