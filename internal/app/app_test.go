package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"promptforge/internal/cache"
	"promptforge/internal/config"
	"promptforge/internal/pipeline"
)

func TestNewFallsBackToOfflineWithoutDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = ""

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.Pipeline.Mode() != pipeline.ModeOffline {
		t.Fatalf("mode = %q, want offline", a.Pipeline.Mode())
	}
	if a.Tools == nil || a.MCP == nil {
		t.Fatalf("tool service or mcp server missing")
	}
	if a.Queue != nil || a.Vector != nil {
		t.Fatalf("offline app should not wire queue or vector")
	}
}

func TestNewHonorsExplicitOfflineMode(t *testing.T) {
	cfg := config.Default()
	cfg.Offline.Mode = true
	cfg.Database.DSN = "postgres://ignored@localhost/ignored"

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.Pipeline.Mode() != pipeline.ModeOffline {
		t.Fatalf("mode = %q, want offline despite dsn", a.Pipeline.Mode())
	}
}

func TestSelectEmbedder(t *testing.T) {
	cfg := config.Default()

	cfg.Embedding.Provider = "noop"
	if got := selectEmbedder(cfg); got == nil || got.Name() != "noop" {
		t.Fatalf("noop provider = %v", got)
	}

	cfg.Embedding.Provider = "disabled"
	if got := selectEmbedder(cfg); got != nil {
		t.Fatalf("disabled provider = %v, want nil", got)
	}

	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = ""
	if got := selectEmbedder(cfg); got == nil || got.Name() != "noop" {
		t.Fatalf("openai without key = %v, want noop fallback", got)
	}
	cfg.Embedding.APIKey = "sk-test"
	if got := selectEmbedder(cfg); got == nil || got.Name() != "openai" {
		t.Fatalf("openai with key = %v", got)
	}

	cfg.Embedding.Provider = "ollama"
	if got := selectEmbedder(cfg); got == nil || got.Name() != "ollama" {
		t.Fatalf("ollama provider = %v", got)
	}
}

func TestFanoutMetricsReachesEverySink(t *testing.T) {
	a := &cache.Counters{}
	b := &cache.Counters{}
	sink := fanoutMetrics{a, b}

	sink.CacheHit("k")
	sink.CacheHit("k")
	sink.CacheMiss("k")

	for i, c := range []*cache.Counters{a, b} {
		hits, misses := c.Snapshot()
		if hits != 2 || misses != 1 {
			t.Fatalf("sink %d: hits=%d misses=%d, want 2/1", i, hits, misses)
		}
	}
}

func TestHandleDebugRendersStatus(t *testing.T) {
	cfg := config.Default()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.handleDebug(rec, httptest.NewRequest(http.MethodGet, "/debug", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"PromptForge Debug", "Mode: offline", "sql"} {
		if !strings.Contains(body, want) {
			t.Fatalf("debug page missing %q:\n%s", want, body)
		}
	}
}
