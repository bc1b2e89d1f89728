package caches

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goliatone/go-activities/pkg/interfaces/cache"
	"github.com/redis/go-redis/v9"
)

// Redis stores string values in a Redis instance under a key prefix.
type Redis struct {
	client redis.Cmdable
	prefix string
}

var _ cache.Cache = (*Redis)(nil)

// RedisConfig holds connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects a client using cfg.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg.Prefix)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = "activities:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Close releases the client connection when the client supports it.
func (r *Redis) Close() error {
	if closer, ok := r.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (any, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("caches: redis get: %w", err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	var payload string
	switch v := value.(type) {
	case string:
		payload = v
	case []byte:
		payload = string(v)
	default:
		return fmt.Errorf("caches: redis accepts string values, got %T", value)
	}
	if err := r.client.Set(ctx, r.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("caches: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("caches: redis delete: %w", err)
	}
	return nil
}
