// Package lock provides the single-flight guard around a scheduler tick.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants exclusive ownership of the tick. ok is false when another
// holder already has it; that is not an error.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// Local guards ticks within a single process.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local { return &Local{} }

func (l *Local) TryLock(_ context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

const tickLeaseKey = "lease:scheduler:tick"

// only the owner may release; an expired lease picked up by another
// instance must not be deleted by the old holder.
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	else
		return 0
	end`

const renewScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	else
		return 0
	end`

// leaseClient is the part of *redis.Client the lease uses.
type leaseClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Redis guards ticks across instances with a TTL lease. The holder renews
// the lease every third of the TTL until it unlocks, so the TTL only bounds
// how long a crashed holder can block the next tick.
type Redis struct {
	rdb    leaseClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(rdb leaseClient, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{rdb: rdb, ttl: ttl, logger: logger.With("component", "tick_lease")}
}

func (r *Redis) TryLock(ctx context.Context) (func(), bool, error) {
	owner := uuid.NewString()

	ok, err := r.rdb.SetNX(ctx, tickLeaseKey, owner, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire tick lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	// the lease outlives the caller's context; unlock ends it
	leaseCtx := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.renew(leaseCtx, owner, stop)
	}()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(leaseCtx, 2*time.Second)
			defer cancel()
			if err := r.rdb.Eval(ctx, releaseScript, []string{tickLeaseKey}, owner).Err(); err != nil {
				r.logger.Warn("release tick lease", "error", err)
			}
		})
	}
	return unlock, true, nil
}

func (r *Redis) renew(ctx context.Context, owner string, stop <-chan struct{}) {
	ticker := time.NewTicker(max(r.ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		n, err := r.rdb.Eval(rctx, renewScript, []string{tickLeaseKey}, owner, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			r.logger.Warn("renew tick lease", "error", err)
		case n == 0:
			// expired and possibly taken by another instance; nothing left to renew
			r.logger.Error("tick lease lost while tick still running")
			return
		}
	}
}
