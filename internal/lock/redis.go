package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
)

// Redis locks a key across every process talking to the same redis server.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis wraps a redis client. ttl bounds how long a crashed holder keeps the
// lock; a live holder refreshes it every ttl/2 until release. wait bounds how
// long Acquire retries.
func NewRedis(rdb redis.UniversalClient, ttl, wait time.Duration) *Redis {
	return &Redis{client: redislock.New(rdb), ttl: ttl, wait: wait}
}

// Acquire retries with linear backoff until the lock is obtained, wait elapses
// or ctx is done.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}
	lk, err := r.client.Obtain(ctx, "rolltrack:lock:"+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.CodeLocked, err, "ledger is locked by another writer")
		}
		return nil, apperr.Wrap(apperr.CodeLocked, err, "obtain redis lock")
	}
	stop := keepAlive(r.ttl, func(ctx context.Context) error {
		return lk.Refresh(ctx, r.ttl, nil)
	})
	return func() {
		stop()
		_ = lk.Release(context.Background())
	}, nil
}

// keepAlive calls refresh every ttl/2 until stop is called or a refresh fails.
// stop is idempotent and waits for an in-flight refresh to finish.
func keepAlive(ttl time.Duration, refresh func(context.Context) error) (stop func()) {
	if ttl <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := refresh(ctx); err != nil {
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
