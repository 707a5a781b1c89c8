package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a best-effort per-key mutex backed by SET NX.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, addr, password string, ttl time.Duration) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Msg("redis connected")
	return NewRedisLockerFromClient(client, ttl), nil
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, prefix: "laconfe:lock:"}
}

// Acquire takes the lock for key. ok is false when someone else holds it.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Use a fresh context so a cancelled request still releases.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{fullKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", fullKey).Msg("redis lock release failed")
		}
	}
	return release, true, nil
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
