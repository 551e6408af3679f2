// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bpa-library/library/internal/config"
)

const redisPingTimeout = 5 * time.Second

// Redis holds the shared client and the key namespace every component
// writes under, so several deployments can share one database.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", ErrConfiguration)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := NewRedisWithClient(redis.NewClient(opts), cfg.KeyPrefix)
	if err := r.Ping(ctx); err != nil {
		_ = r.Close() //nolint:errcheck // cleanup on connection failure
		return nil, err
	}

	return r, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: strings.Trim(prefix, ":")}
}

func (r *Redis) Client() *redis.Client {
	return r.client
}

// Key joins parts under the namespace: with prefix "library",
// Key("revoked", "abc") is "library:revoked:abc".
func (r *Redis) Key(parts ...string) string {
	key := strings.Join(parts, ":")
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// SetFlag marks key as present until ttl elapses.
func (r *Redis) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) HasFlag(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w: %w", key, ErrUnavailable, err)
	}
	return n > 0, nil
}

func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.client.PoolStats()
}
