package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotHeld is returned when a release finds the key owned by someone else or expired.
var ErrNotHeld = errors.New("lock not held or expired")

// Only the token owner may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker is a Locker shared by every process talking to the same redis.
// A holder that outlives ttl loses the lock.
type RedisLocker struct {
	client       *redis.Client
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRedisLocker creates a RedisLocker. A non-positive ttl defaults to 10s.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
		logger:       logger.Named("redis-lock"),
	}
}

func generateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.prefix + key
	token := generateToken()

	ok, err := r.tryLock(ctx, lockKey, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				if ok, err = r.tryLock(ctx, lockKey, token); err != nil {
					return nil, err
				}
			}
		}
	}

	return func() {
		// Release even if the caller's context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.release(ctx, lockKey, token); err != nil {
			r.logger.Warn("Failed to release lock", zap.String("key", lockKey), zap.Error(err))
		}
	}, nil
}

func (r *RedisLocker) tryLock(ctx context.Context, lockKey, token string) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (r *RedisLocker) release(ctx context.Context, lockKey, token string) error {
	n, err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis eval failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", lockKey, ErrNotHeld)
	}
	return nil
}

func (r *RedisLocker) ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLocker) Close() error {
	return r.client.Close()
}
