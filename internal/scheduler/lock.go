package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a tick so that replicas sharing a database never run one
// concurrently. release is a no-op when ok is false.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLock struct {
	client *redis.Client
	key    string
}

func NewRedisLock(client *redis.Client, key string) *RedisLock {
	return &RedisLock{client: client, key: key}
}

func (l *RedisLock) Acquire(ctx context.Context, ttl time.Duration) (func(context.Context), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return noRelease, false, fmt.Errorf("acquiring tick lock: %w", err)
	}
	if !ok {
		return noRelease, false, nil
	}
	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			slog.WarnContext(ctx, "releasing tick lock failed, it will expire", "key", l.key, "error", err)
		}
	}, true, nil
}

func noRelease(context.Context) {}

// localLock serializes ticks within one process when no Redis is
// configured.
type localLock struct {
	ch chan struct{}
}

func newLocalLock() *localLock {
	return &localLock{ch: make(chan struct{}, 1)}
}

func (l *localLock) Acquire(context.Context, time.Duration) (func(context.Context), bool, error) {
	select {
	case l.ch <- struct{}{}:
		return func(context.Context) { <-l.ch }, true, nil
	default:
		return noRelease, false, nil
	}
}
