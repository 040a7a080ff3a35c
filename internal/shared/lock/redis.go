package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"contract-analyzer/internal/shared/telemetry"
)

// releaseScript deletes the key only if it still carries our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

const keyPrefix = "contract-analyzer:lock:"

// RedisClient is the subset of go-redis used by Redis.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Redis is a Locker shared across processes. TTL bounds how long a crashed
// holder can block the key.
type Redis struct {
	Client RedisClient
	TTL    time.Duration
}

// NewRedis returns a Redis locker with the given lease.
func NewRedis(client RedisClient, ttl time.Duration) *Redis {
	return &Redis{Client: client, TTL: ttl}
}

func (r *Redis) TryLock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	fullKey := keyPrefix + key

	ok, err := r.Client.SetNX(ctx, fullKey, token, r.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must survive cancellation of the caller's context.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := r.Client.Eval(releaseCtx, releaseScript, []string{fullKey}, token).Err(); err != nil {
				telemetry.Warn("lock.release.failed", map[string]any{"key": fullKey, "error": err})
			}
		})
	}, nil
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
