// Package cache provides the namespaced key/value layer used by the
// request pipeline: JSON values with per-call raw opt-out, TTLs,
// set-if-absent locks, and interchangeable redis and in-memory backends.
package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Cache is satisfied by both backends so pipeline logic is fully
// testable without a live store. A JSON parse failure on read returns
// the raw string instead of an error.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool, error)
	GetRaw(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetRaw(ctx context.Context, key, value string, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) error
	GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (any, error)) (any, error)
	MGet(ctx context.Context, keys ...string) (map[string]any, error)
	MSet(ctx context.Context, entries map[string]any, ttl time.Duration) error
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// MetricsSink receives one call per Get. Injected rather than kept as
// instance fields so multi-worker deployments can aggregate externally.
type MetricsSink interface {
	CacheHit(key string)
	CacheMiss(key string)
}

type NopMetrics struct{}

func (NopMetrics) CacheHit(string)  {}
func (NopMetrics) CacheMiss(string) {}

// Counters is a process-local MetricsSink. Not safe to aggregate across
// instances without an external collector.
type Counters struct {
	mu     sync.Mutex
	hits   uint64
	misses uint64
}

func (c *Counters) CacheHit(string) {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Counters) CacheMiss(string) {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *Counters) Snapshot() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Counters) HitRate() float64 {
	hits, misses := c.Snapshot()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Options configures key shaping and metrics for a backend. The full key
// is prefix + namespace + ":" + key; the namespace scopes Clear and
// DeletePattern away from other partitions.
type Options struct {
	Prefix    string
	Namespace string
	Metrics   MetricsSink
}

func (o Options) metrics() MetricsSink {
	if o.Metrics == nil {
		return NopMetrics{}
	}
	return o.Metrics
}

func (o Options) fullKey(key string) string {
	if o.Namespace == "" {
		return o.Prefix + key
	}
	return o.Prefix + o.Namespace + ":" + key
}

func (o Options) scope() string {
	return o.fullKey("")
}

func encode(value any) (string, error) {
	if s, ok := value.(string); ok {
		// Strings still round-trip through JSON so decode stays uniform.
		raw, err := json.Marshal(s)
		return string(raw), err
	}
	raw, err := json.Marshal(value)
	return string(raw), err
}

// decode returns the parsed JSON value, or the raw string when parsing
// fails. Availability wins over strictness here.
func decode(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw
	}
	return value
}

// matchPattern supports '*' globs the way redis KEYS does, which is all
// the pipeline needs.
func matchPattern(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(key)
}

func lockKey(key string) string {
	return "lock:" + key
}
