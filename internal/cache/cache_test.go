package cache

import (
	"context"
	"testing"
	"time"

	"promptforge/internal/fault"
)

var (
	_ Cache = (*Memory)(nil)
	_ Cache = (*Redis)(nil)
)

func testMemory() (*Memory, *Counters) {
	counters := &Counters{}
	m := NewMemory(Options{Prefix: "pf:", Namespace: "prompt", Metrics: counters})
	return m, counters
}

func TestMemorySetGetJSON(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()

	type payload struct {
		Refined string  `json:"refined"`
		Overall float64 `json:"overall"`
	}
	if err := m.Set(ctx, "k1", payload{Refined: "Create a table.", Overall: 0.75}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := m.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	decoded, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded object, got %T", value)
	}
	if decoded["refined"] != "Create a table." {
		t.Fatalf("unexpected payload %v", decoded)
	}
}

func TestMemoryRawFallbackOnParseFailure(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()

	if err := m.SetRaw(ctx, "bad", "not-json{", time.Minute); err != nil {
		t.Fatalf("setraw: %v", err)
	}
	value, ok, err := m.Get(ctx, "bad")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if value != "not-json{" {
		t.Fatalf("expected raw fallback, got %v", value)
	}
}

func TestMemoryExpiryCheckedOnRead(t *testing.T) {
	ctx := context.Background()
	m, counters := testMemory()

	current := time.Now()
	m.now = func() time.Time { return current }

	if err := m.Set(ctx, "short", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "short"); !ok {
		t.Fatalf("expected hit before expiry")
	}
	current = current.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "short"); ok {
		t.Fatalf("expected miss after expiry")
	}
	hits, misses := counters.Snapshot()
	if hits != 1 || misses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %d/%d", hits, misses)
	}
	if counters.HitRate() != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", counters.HitRate())
	}
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()
	current := time.Now()
	m.now = func() time.Time { return current }

	if err := m.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	current = current.Add(24 * time.Hour)
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Fatalf("zero ttl must not expire")
	}
}

func TestNamespaceScopesClear(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()

	if err := m.Set(ctx, "mine", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	m.mu.Lock()
	m.data["pf:other:foreign"] = memoryEntry{value: `"v"`}
	m.mu.Unlock()

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "mine"); ok {
		t.Fatalf("clear must remove namespaced keys")
	}
	m.mu.Lock()
	_, foreign := m.data["pf:other:foreign"]
	m.mu.Unlock()
	if !foreign {
		t.Fatalf("clear must not cross namespaces")
	}
}

func TestDeletePattern(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()
	for _, key := range []string{"prompt_a", "prompt_b", "stats_c"} {
		if err := m.Set(ctx, key, "v", 0); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	removed, err := m.DeletePattern(ctx, "prompt_*")
	if err != nil {
		t.Fatalf("deletepattern: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok, _ := m.Get(ctx, "stats_c"); !ok {
		t.Fatalf("unrelated key must survive")
	}
}

func TestLockIsSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()
	current := time.Now()
	m.now = func() time.Time { return current }

	ok, err := m.Lock(ctx, "recompute", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock should win: ok=%v err=%v", ok, err)
	}
	ok, _ = m.Lock(ctx, "recompute", time.Minute)
	if ok {
		t.Fatalf("second lock must lose")
	}
	if err := m.Unlock(ctx, "recompute"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, _ = m.Lock(ctx, "recompute", time.Minute)
	if !ok {
		t.Fatalf("lock must be re-acquirable after unlock")
	}
	current = current.Add(2 * time.Minute)
	ok, _ = m.Lock(ctx, "recompute", time.Minute)
	if !ok {
		t.Fatalf("expired lock must be re-acquirable")
	}
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()

	n, err := m.Increment(ctx, "counter", 5)
	if err != nil || n != 5 {
		t.Fatalf("expected 5, got %d (%v)", n, err)
	}
	n, err = m.Increment(ctx, "counter", 3)
	if err != nil || n != 8 {
		t.Fatalf("expected 8, got %d (%v)", n, err)
	}

	if err := m.SetRaw(ctx, "text", "hello", 0); err != nil {
		t.Fatalf("setraw: %v", err)
	}
	if _, err := m.Increment(ctx, "text", 1); fault.KindOf(err) != fault.Invalid {
		t.Fatalf("expected invalid fault, got %v", err)
	}
}

func TestGetOrSetComputesOnce(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()

	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return "computed", nil
	}
	for i := 0; i < 2; i++ {
		value, err := m.GetOrSet(ctx, "once", time.Minute, compute)
		if err != nil {
			t.Fatalf("getorset: %v", err)
		}
		if value != "computed" {
			t.Fatalf("unexpected value %v", value)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single compute call, got %d", calls)
	}
}

func TestMGetMSet(t *testing.T) {
	ctx := context.Background()
	m, _ := testMemory()

	if err := m.MSet(ctx, map[string]any{"a": 1, "b": "two"}, time.Minute); err != nil {
		t.Fatalf("mset: %v", err)
	}
	out, err := m.MGet(ctx, "a", "b", "missing")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %v", out)
	}
	if out["b"] != "two" {
		t.Fatalf("unexpected value %v", out["b"])
	}
}

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"pf:prompt:prompt_*", "pf:prompt:prompt_0a1b2c3d", true},
		{"pf:prompt:prompt_*", "pf:prompt:stats", false},
		{"pf:prompt:", "pf:prompt:", true},
		{"*", "anything", true},
	}
	for _, tc := range cases {
		if got := matchPattern(tc.pattern, tc.key); got != tc.want {
			t.Fatalf("matchPattern(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}
