// internal/cache/redis.go
//
// Redis-backed cache shared by every forumd process.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis implements Cache on a go-redis client.  All keys are prefixed so
// the forum can share a Redis database with other services.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Cache = (*Redis)(nil)

// NewRedis parses redisURL, connects, and pings once.
func NewRedis(ctx context.Context, redisURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Connect returns a Redis cache when redisURL is set and reachable, and an
// in-process Memory of memorySize entries otherwise.  A bad URL or a dead
// server is logged, never returned: the forum runs without a shared cache.
func Connect(ctx context.Context, redisURL, prefix string, memorySize int, log *zap.SugaredLogger) Cache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if redisURL != "" {
		r, err := NewRedis(ctx, redisURL, prefix)
		if err == nil {
			log.Infow("redis cache online", "prefix", prefix)
			return r
		}
		log.Warnw("redis unavailable, falling back to in-process cache", "err", err)
	}
	log.Infow("using in-process cache", "entries", memorySize)
	return NewMemory(memorySize)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Client exposes the underlying client for pub/sub.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), val, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Push runs LREM, LPUSH, and LTRIM in one MULTI so readers never see the
// duplicate or the untrimmed tail.
func (r *Redis) Push(ctx context.Context, key, member string, trim int) error {
	k := r.key(key)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, k, 0, member)
		p.LPush(ctx, k, member)
		if trim > 0 {
			p.LTrim(ctx, k, 0, int64(trim-1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache push %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Range(ctx context.Context, key string, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	out, err := r.client.LRange(ctx, r.key(key), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("cache range %s: %w", key, err)
	}
	return out, nil
}

func (r *Redis) Remove(ctx context.Context, key, member string) error {
	if err := r.client.LRem(ctx, r.key(key), 0, member).Err(); err != nil {
		return fmt.Errorf("cache remove %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.client.Close() }
