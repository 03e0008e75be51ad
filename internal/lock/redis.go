// internal/lock/redis.go
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"goalflow/internal/util"
)

const (
	defaultLockPrefix = "goalflow:account_lock"
	defaultLockTTL    = 30 * time.Second
	defaultLockWait   = 10 * time.Second
	lockRetryBackoff  = 25 * time.Millisecond
)

// RedisLocker is an AccountLocker shared by every instance pointed at the same Redis.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	logger *slog.Logger
}

// NewRedisLocker wraps a go-redis client (anything that can run scripts).
// Zero ttl or wait use the defaults; a nil logger uses the global one.
func NewRedisLocker(rdb redislock.RedisClient, prefix string, ttl, wait time.Duration, logger *slog.Logger) *RedisLocker {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	if logger == nil {
		logger = util.GetLogger()
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Key returns the Redis key guarding an account.
func (l *RedisLocker) Key(accountID int64) string {
	return fmt.Sprintf("%s:%d", l.prefix, accountID)
}

// Lock implements AccountLocker. It retries each key until the wait budget is spent.
func (l *RedisLocker) Lock(ctx context.Context, ids []int64) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ids = sortedUnique(ids)
	held := make([]*redislock.Lock, 0, len(ids))
	for _, id := range ids {
		lk, err := l.client.Obtain(waitCtx, l.Key(id), l.ttl, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(lockRetryBackoff),
		})
		if err != nil {
			l.release(held)
			// Running out of the wait budget, not the caller's ctx, means someone else holds the key.
			if errors.Is(err, redislock.ErrNotObtained) || (ctx.Err() == nil && waitCtx.Err() != nil) {
				return nil, fmt.Errorf("account %d is busy: %w", id, redislock.ErrNotObtained)
			}
			return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		held = append(held, lk)
	}
	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *RedisLocker) release(held []*redislock.Lock) {
	for i := len(held) - 1; i >= 0; i-- {
		// Release on a fresh context: the request context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release account lock", "key", held[i].Key(), "error", err)
		}
		cancel()
	}
}
