package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"promptforge/internal/cache"
	"promptforge/internal/fault"
	"promptforge/internal/registry"
	"promptforge/internal/store"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	caps := LiveCapabilities(
		registry.New(),
		cache.NewMemory(cache.Options{Prefix: "pf:", Namespace: "test"}),
		store.NewMemory(),
		nil,
		nil,
	)
	return New(caps, Options{Version: "test"})
}

func TestProcessTwiceHitsCache(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	in := ProcessInput{Raw: "Create a user table", Domain: "sql"}

	first, err := o.Process(ctx, in)
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Fatal("expected first call to miss the cache")
	}
	if first.Refined == "" {
		t.Fatal("expected refined text")
	}

	second, err := o.Process(ctx, in)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Fatal("expected second call to hit the cache")
	}
	if second.Refined != first.Refined {
		t.Fatalf("expected identical refined text, got %q vs %q", second.Refined, first.Refined)
	}
	if second.Score != first.Score {
		t.Fatalf("expected identical scores, got %+v vs %+v", second.Score, first.Score)
	}
	if second.Metadata.Mode != ModeLive {
		t.Fatalf("expected live mode metadata, got %q", second.Metadata.Mode)
	}
}

func TestCacheKeyInvariantToFieldOrder(t *testing.T) {
	var a, b ProcessInput
	if err := json.Unmarshal([]byte(`{"raw":"Create a table","domain":"sql","tone":"technical","variables":{"x":"1","y":"2"}}`), &a); err != nil {
		t.Fatalf("decode a: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"variables":{"y":"2","x":"1"},"tone":"technical","domain":"sql","raw":"Create a table"}`), &b); err != nil {
		t.Fatalf("decode b: %v", err)
	}
	if CacheKey(a) != CacheKey(b) {
		t.Fatalf("expected identical keys, got %s vs %s", CacheKey(a), CacheKey(b))
	}

	c := a
	c.Raw = "Create a different table"
	if CacheKey(a) == CacheKey(c) {
		t.Fatal("expected different raw text to change the key")
	}

	d := ProcessInput{Raw: "x"}
	e := ProcessInput{Raw: "x", Variables: map[string]string{}}
	if CacheKey(d) != CacheKey(e) {
		t.Fatal("expected nil and empty variables to hash identically")
	}

	f := ProcessInput{Raw: "x", TargetModel: "gpt"}
	if CacheKey(d) != CacheKey(f) {
		t.Fatal("expected target model to be outside the key contract")
	}
}

func TestTTLMonotonicAndBounded(t *testing.T) {
	o := newTestOrchestrator(t)
	prev := time.Duration(0)
	for _, overall := range []float64{0, 0.2, 0.5, 0.6, 0.8, 0.95, 1.0} {
		ttl := o.ttlFor(overall)
		if ttl < 1800*time.Second || ttl > 3600*time.Second {
			t.Fatalf("ttl out of bounds for overall=%v: %v", overall, ttl)
		}
		if ttl < prev {
			t.Fatalf("ttl decreased at overall=%v: %v < %v", overall, ttl, prev)
		}
		prev = ttl
	}
	if o.ttlFor(0.5) != 1800*time.Second {
		t.Fatalf("expected floor at 1800s, got %v", o.ttlFor(0.5))
	}
	if o.ttlFor(1.0) != 3600*time.Second {
		t.Fatalf("expected cap at 3600s, got %v", o.ttlFor(1.0))
	}
}

type unreachableCache struct {
	cache.Cache
	failRead  bool
	failWrite bool
}

func (c *unreachableCache) GetRaw(ctx context.Context, key string) (string, bool, error) {
	if c.failRead {
		return "", false, fault.Unavailablef("cache.get", errors.New("connection refused"))
	}
	return c.Cache.GetRaw(ctx, key)
}

func (c *unreachableCache) SetRaw(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.failWrite {
		return fault.Unavailablef("cache.set", errors.New("connection refused"))
	}
	return c.Cache.SetRaw(ctx, key, value, ttl)
}

func TestProcessDegradesWhenCacheReadUnavailable(t *testing.T) {
	inner := cache.NewMemory(cache.Options{Prefix: "pf:", Namespace: "test"})
	caps := LiveCapabilities(registry.New(), &unreachableCache{Cache: inner, failRead: true}, store.NewMemory(), nil, nil)
	o := New(caps, Options{})

	out, err := o.Process(context.Background(), ProcessInput{Raw: "Create a user table with columns for name and email", Domain: "sql"})
	if err != nil {
		t.Fatalf("expected degraded result, not error: %v", err)
	}
	if out.Metadata.Mode != "degraded" {
		t.Fatalf("expected degraded mode, got %q", out.Metadata.Mode)
	}
	if out.Refined != out.Original {
		t.Fatalf("expected identity refinement, got %q", out.Refined)
	}
	if out.Score.Overall != 0.5 || out.Score.Clarity != 0.5 {
		t.Fatalf("expected neutral scores, got %+v", out.Score)
	}
	if out.Metadata.CacheHit {
		t.Fatal("expected cacheHit=false in degraded mode")
	}
	if out.SystemPrompt == "" {
		t.Fatal("expected locally composed system prompt")
	}
	if !out.Validation.IsValid {
		t.Fatalf("expected local validation to pass for a sound prompt: %+v", out.Validation.Errors)
	}
}

func TestProcessDegradesWhenCacheWriteUnavailable(t *testing.T) {
	inner := cache.NewMemory(cache.Options{Prefix: "pf:", Namespace: "test"})
	caps := LiveCapabilities(registry.New(), &unreachableCache{Cache: inner, failWrite: true}, store.NewMemory(), nil, nil)
	o := New(caps, Options{})

	out, err := o.Process(context.Background(), ProcessInput{Raw: "Create a user table with columns for name and email", Domain: "sql"})
	if err != nil {
		t.Fatalf("expected degraded result, not error: %v", err)
	}
	if out.Metadata.Mode != "degraded" {
		t.Fatalf("expected degraded mode, got %q", out.Metadata.Mode)
	}
}

type brokenCache struct {
	cache.Cache
}

func (c *brokenCache) GetRaw(ctx context.Context, key string) (string, bool, error) {
	return "", false, fault.New(fault.Internal, "cache.get", errors.New("corrupt state"))
}

func TestProcessPropagatesUnclassifiedErrors(t *testing.T) {
	inner := cache.NewMemory(cache.Options{})
	caps := LiveCapabilities(registry.New(), &brokenCache{Cache: inner}, store.NewMemory(), nil, nil)
	o := New(caps, Options{})

	_, err := o.Process(context.Background(), ProcessInput{Raw: "Create a user table", Domain: "sql"})
	if err == nil {
		t.Fatal("expected unclassified error to propagate")
	}
	if fault.IsUnavailable(err) {
		t.Fatalf("expected internal kind, got %v", err)
	}
}

func TestProcessOfflineNeverErrors(t *testing.T) {
	o := New(OfflineCapabilities(registry.New()), Options{})
	ctx := context.Background()

	for _, raw := range []string{
		"make me a sql query",
		"x",
		"hazme una bonita tabla",
		"Create a user table with columns for name and email",
	} {
		out, err := o.Process(ctx, ProcessInput{Raw: raw, Domain: "sql"})
		if err != nil {
			t.Fatalf("offline process(%q): %v", raw, err)
		}
		if out.Metadata.CacheHit {
			t.Fatalf("offline process(%q): expected cacheHit=false", raw)
		}
		if out.Metadata.Mode != ModeOffline {
			t.Fatalf("offline process(%q): expected offline mode, got %q", raw, out.Metadata.Mode)
		}
		if out.Refined == "" {
			t.Fatalf("offline process(%q): expected refined text", raw)
		}
	}
}

func TestProcessOfflineNormalizesText(t *testing.T) {
	o := New(OfflineCapabilities(registry.New()), Options{})

	out, err := o.Process(context.Background(), ProcessInput{Raw: "make   me a query", Domain: "sql"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Refined == out.Original {
		t.Fatal("expected normalization to change the text")
	}
	if out.Score.Overall != 0.5 {
		t.Fatalf("expected neutral score offline, got %v", out.Score.Overall)
	}
	if len(out.Metadata.RulesApplied) == 0 {
		t.Fatal("expected normalization rules to be reported")
	}
}

func TestProcessEmptyPromptShortCircuits(t *testing.T) {
	o := newTestOrchestrator(t)

	for _, raw := range []string{"", "   ", "\n\t"} {
		out, err := o.Process(context.Background(), ProcessInput{Raw: raw, Domain: "sql"})
		if err != nil {
			t.Fatalf("process(%q): %v", raw, err)
		}
		if out.Validation.IsValid {
			t.Fatalf("process(%q): expected invalid result", raw)
		}
		if len(out.Validation.Errors) != 1 || out.Validation.Errors[0].Code != "empty_prompt" {
			t.Fatalf("process(%q): expected single empty_prompt error, got %+v", raw, out.Validation.Errors)
		}
		if out.Score.Overall != 0 {
			t.Fatalf("process(%q): expected zero score, got %v", raw, out.Score.Overall)
		}
		if out.Metadata.CacheHit {
			t.Fatalf("process(%q): expected no cache involvement", raw)
		}
	}
}

func TestProcessGeneratesTemplateForExplicitVariables(t *testing.T) {
	o := newTestOrchestrator(t)

	out, err := o.Process(context.Background(), ProcessInput{
		Raw:       "Create a report for the sales team",
		Domain:    "saas",
		Variables: map[string]string{"team": "sales"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Template == nil {
		t.Fatal("expected template when caller supplies variables")
	}
	if !out.Metadata.TemplateUsed {
		t.Fatal("expected templateUsed metadata flag")
	}
}

func TestProcessGeneratesExamplesForSQLDomain(t *testing.T) {
	o := newTestOrchestrator(t)

	out, err := o.Process(context.Background(), ProcessInput{Raw: "Create a user table", Domain: "sql"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(out.Examples) == 0 {
		t.Fatal("expected examples for sql domain")
	}
	if out.ScoreDetail == nil {
		t.Fatal("expected score detail on the live path")
	}
	if out.ScoreDetail.Confidence < 0.5 || out.ScoreDetail.Confidence > 1.0 {
		t.Fatalf("confidence out of bounds: %v", out.ScoreDetail.Confidence)
	}
}

func TestProcessResolvesDomainFromHints(t *testing.T) {
	o := newTestOrchestrator(t)

	out, err := o.Process(context.Background(), ProcessInput{Raw: "Write a query that joins the users table with the orders schema"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Metadata.Domain != "sql" {
		t.Fatalf("expected sql domain from hints, got %q", out.Metadata.Domain)
	}
}
