package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"promptforge/internal/fault"
)

// Redis is the production backend. Transport failures come back with an
// unavailable fault kind so the orchestrator can degrade instead of
// matching on message text.
type Redis struct {
	client *redis.Client
	opts   Options
}

func NewRedis(url string, opts Options) (*Redis, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fault.Invalidf("cache.redis", fmt.Errorf("parse url: %v", err))
	}
	return &Redis{client: redis.NewClient(parsed), opts: opts}, nil
}

// NewRedisClient wraps an existing client, for sharing a connection with
// the queue.
func NewRedisClient(client *redis.Client, opts Options) *Redis {
	return &Redis{client: client, opts: opts}
}

func (r *Redis) Get(ctx context.Context, key string) (any, bool, error) {
	raw, ok, err := r.GetRaw(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return decode(raw), true, nil
}

func (r *Redis) GetRaw(ctx context.Context, key string) (string, bool, error) {
	raw, err := r.client.Get(ctx, r.opts.fullKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		r.opts.metrics().CacheMiss(key)
		return "", false, nil
	}
	if err != nil {
		r.opts.metrics().CacheMiss(key)
		return "", false, fault.FromTransport("cache.get", err)
	}
	r.opts.metrics().CacheHit(key)
	return raw, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		return fault.Invalidf("cache.set", fmt.Errorf("encode %s: %v", key, err))
	}
	return r.SetRaw(ctx, key, raw, ttl)
}

func (r *Redis) SetRaw(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.opts.fullKey(key), value, ttl).Err(); err != nil {
		return fault.FromTransport("cache.set", err)
	}
	return nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.opts.fullKey(key)).Result()
	if err != nil {
		return false, fault.FromTransport("cache.has", err)
	}
	return n > 0, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.opts.fullKey(key)).Err(); err != nil {
		return fault.FromTransport("cache.delete", err)
	}
	return nil
}

func (r *Redis) DeletePattern(ctx context.Context, pattern string) (int, error) {
	keys, err := r.client.Keys(ctx, r.opts.fullKey(pattern)).Result()
	if err != nil {
		return 0, fault.FromTransport("cache.delete_pattern", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fault.FromTransport("cache.delete_pattern", err)
	}
	return len(keys), nil
}

func (r *Redis) Clear(ctx context.Context) error {
	_, err := r.DeletePattern(ctx, "*")
	return err
}

func (r *Redis) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (any, error)) (any, error) {
	if value, ok, err := r.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return value, nil
	}
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

func (r *Redis) MGet(ctx context.Context, keys ...string) (map[string]any, error) {
	if len(keys) == 0 {
		return map[string]any{}, nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = r.opts.fullKey(key)
	}
	values, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fault.FromTransport("cache.mget", err)
	}
	out := make(map[string]any, len(keys))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		out[keys[i]] = decode(raw)
	}
	return out, nil
}

func (r *Redis) MSet(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	for key, value := range entries {
		raw, err := encode(value)
		if err != nil {
			return fault.Invalidf("cache.mset", fmt.Errorf("encode %s: %v", key, err))
		}
		pipe.Set(ctx, r.opts.fullKey(key), raw, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fault.FromTransport("cache.mset", err)
	}
	return nil
}

func (r *Redis) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.client.IncrBy(ctx, r.opts.fullKey(key), delta).Result()
	if err != nil {
		return 0, fault.FromTransport("cache.increment", err)
	}
	return n, nil
}

func (r *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.opts.fullKey(lockKey(key)), "1", ttl).Result()
	if err != nil {
		return false, fault.FromTransport("cache.lock", err)
	}
	return ok, nil
}

func (r *Redis) Unlock(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.opts.fullKey(lockKey(key))).Err(); err != nil {
		return fault.FromTransport("cache.unlock", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fault.FromTransport("cache.ping", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
