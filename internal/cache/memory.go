package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"promptforge/internal/fault"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is the disconnected backend: an in-process expiring map with
// the expiry checked on read. No background janitor runs; entries linger
// until touched or cleared.
type Memory struct {
	opts Options
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		opts: opts,
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *Memory) getEntry(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[key]
	if !ok {
		return "", false
	}
	if entry.expired(m.now()) {
		delete(m.data, key)
		return "", false
	}
	return entry.value, true
}

func (m *Memory) setEntry(key, value string, ttl time.Duration) {
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = memoryEntry{value: value, expiresAt: expires}
	m.mu.Unlock()
}

func (m *Memory) Get(ctx context.Context, key string) (any, bool, error) {
	raw, ok, err := m.GetRaw(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return decode(raw), true, nil
}

func (m *Memory) GetRaw(_ context.Context, key string) (string, bool, error) {
	raw, ok := m.getEntry(m.opts.fullKey(key))
	if ok {
		m.opts.metrics().CacheHit(key)
		return raw, true, nil
	}
	m.opts.metrics().CacheMiss(key)
	return "", false, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		return fault.Invalidf("cache.set", fmt.Errorf("encode %s: %v", key, err))
	}
	m.setEntry(m.opts.fullKey(key), raw, ttl)
	return nil
}

func (m *Memory) SetRaw(_ context.Context, key, value string, ttl time.Duration) error {
	m.setEntry(m.opts.fullKey(key), value, ttl)
	return nil
}

func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	_, ok := m.getEntry(m.opts.fullKey(key))
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, m.opts.fullKey(key))
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeletePattern(_ context.Context, pattern string) (int, error) {
	full := m.opts.fullKey(pattern)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.data {
		if matchPattern(full, key) {
			delete(m.data, key)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Clear(_ context.Context) error {
	scope := m.opts.scope()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if matchPattern(scope+"*", key) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *Memory) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (any, error)) (any, error) {
	if value, ok, err := m.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return value, nil
	}
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Memory) MGet(ctx context.Context, keys ...string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if value, ok, err := m.Get(ctx, key); err != nil {
			return nil, err
		} else if ok {
			out[key] = value
		}
	}
	return out, nil
}

func (m *Memory) MSet(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	for key, value := range entries {
		if err := m.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Increment(_ context.Context, key string, delta int64) (int64, error) {
	full := m.opts.fullKey(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	current := int64(0)
	if entry, ok := m.data[full]; ok && !entry.expired(m.now()) {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, fault.Invalidf("cache.increment", fmt.Errorf("%s holds a non-numeric value", key))
		}
		current = parsed
	}
	current += delta
	m.data[full] = memoryEntry{value: strconv.FormatInt(current, 10)}
	return current, nil
}

// Lock is set-if-absent with TTL: it returns true only for the caller
// that created the lock entry.
func (m *Memory) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	full := m.opts.fullKey(lockKey(key))
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.data[full]; ok && !entry.expired(m.now()) {
		return false, nil
	}
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.data[full] = memoryEntry{value: "1", expiresAt: expires}
	return true, nil
}

func (m *Memory) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, m.opts.fullKey(lockKey(key)))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
