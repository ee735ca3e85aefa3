// Package redislock provides the optional single-run-at-a-time guarantee
// from SPEC_FULL's domain stack: a SETNX-based lock so two operators (or a
// scheduled run and a manual one) never process the same recipient sheet
// concurrently. It is skipped entirely when Redis.Addr is unset.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrAlreadyLocked is returned by Acquire when another process already
// holds the run lock.
var ErrAlreadyLocked = errors.New("redislock: run already in progress")

// Lock guards one key against concurrent holders using SETNX+TTL, the same
// pattern the go-redis idiom uses for message visibility leases.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// New builds a Lock for key with the given time-to-live. A random token is
// generated so Release only ever removes a lock this instance acquired.
func New(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, ttl: ttl, token: uuid.New().String()}
}

// Acquire takes the lock, returning ErrAlreadyLocked if another holder is
// active. Nil-client Locks (Redis.Addr unset) always succeed, so callers
// can unconditionally wrap a run in Acquire/Release.
func (l *Lock) Acquire(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if !ok {
		return ErrAlreadyLocked
	}
	return nil
}

// Release drops the lock, but only if it still holds the token this
// instance set — a previous holder's expired lock is never clobbered out
// from under its rightful successor.
func (l *Lock) Release(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`
	return l.client.Eval(ctx, script, []string{l.key}, l.token).Err()
}

// Refresh extends the TTL, used by long-running engine passes to avoid the
// lock expiring mid-run while the process is still alive.
func (l *Lock) Refresh(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	ok, err := l.client.Expire(ctx, l.key, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("refreshing run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("refreshing run lock: key %q no longer held", l.key)
	}
	return nil
}

// KeepAlive calls Refresh on a fixed interval until ctx is done, so a run
// that outlives the lock's TTL keeps its hold instead of letting a second
// process acquire the same key out from under it. Callers start this
// alongside Acquire and let it die with the run's context; it never
// releases the lock itself, Release remains the caller's job.
func (l *Lock) KeepAlive(ctx context.Context, interval time.Duration) {
	if l.client == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
