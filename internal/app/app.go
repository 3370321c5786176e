// Package app wires configuration into a running instance: capability
// selection (live or offline), the tool service, the MCP server, and
// the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"promptforge/internal/cache"
	"promptforge/internal/config"
	"promptforge/internal/embed"
	"promptforge/internal/mcp"
	"promptforge/internal/observability"
	"promptforge/internal/pipeline"
	"promptforge/internal/queue"
	"promptforge/internal/ratelimit"
	"promptforge/internal/registry"
	"promptforge/internal/store"
	"promptforge/internal/telemetry"
	"promptforge/internal/tools"
	"promptforge/internal/vector"
)

const version = "0.1.0"

type App struct {
	Config   config.Config
	Caps     pipeline.Capabilities
	Pipeline *pipeline.Orchestrator
	Store    store.Store
	Cache    cache.Cache
	Metrics  *cache.Counters
	Queue    *queue.Queue
	Vector   vector.Store
	Embedder embed.Provider
	Tools    *tools.Service
	MCP      *mcp.Server
}

// fanoutMetrics sends each cache hit or miss to every sink.
type fanoutMetrics []cache.MetricsSink

func (f fanoutMetrics) CacheHit(key string) {
	for _, s := range f {
		s.CacheHit(key)
	}
}

func (f fanoutMetrics) CacheMiss(key string) {
	for _, s := range f {
		s.CacheMiss(key)
	}
}

// New builds the app. An empty database DSN or offline.mode selects the
// dependency-free wiring: in-process cache and store, no queue, no
// vector index.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	reg := registry.New()
	loaded, err := reg.LoadDir(cfg.Packs.Dir)
	if err != nil {
		return nil, err
	}
	if loaded > 0 {
		log.Printf("app packs loaded dir=%s count=%d", cfg.Packs.Dir, loaded)
	}

	if cfg.Offline.Mode || cfg.Database.DSN == "" {
		return newOffline(cfg, reg), nil
	}

	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, st.DB()); err != nil {
		return nil, err
	}

	obs := observability.NewLogObserver(log.Default())
	counters := &cache.Counters{}
	c, err := selectCache(cfg, fanoutMetrics{counters, observability.CacheMetrics{Observer: obs}})
	if err != nil {
		return nil, err
	}

	var sink telemetry.Sink = telemetry.Noop{}
	if cfg.Telemetry.Enabled {
		sink = telemetry.NewRecorder(st, log.Default())
	}

	var q *queue.Queue
	if cfg.Redis.URL != "" {
		q, err = queue.New(cfg.Redis.URL, cfg.Queue.Name)
		if err != nil {
			return nil, err
		}
	}

	embedder := selectEmbedder(cfg)

	var vectorStore vector.Store
	if cfg.Qdrant.URL != "" && embedder != nil {
		vectorStore = vector.NewQdrant(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	}

	caps := pipeline.LiveCapabilities(reg, c, st, sink, obs)
	orch := pipeline.New(caps, orchestratorOptions(cfg))
	toolSvc := tools.NewService(cfg, orch, caps, vectorStore, embedder, q)
	mcpServer := mcp.NewServer(cfg, toolSvc, ratelimit.New(), observability.NewThrottleObserver(log.Default()))

	return &App{
		Config:   cfg,
		Caps:     caps,
		Pipeline: orch,
		Store:    st,
		Cache:    c,
		Metrics:  counters,
		Queue:    q,
		Vector:   vectorStore,
		Embedder: embedder,
		Tools:    toolSvc,
		MCP:      mcpServer,
	}, nil
}

func newOffline(cfg config.Config, reg *registry.Registry) *App {
	caps := pipeline.OfflineCapabilities(reg)
	orch := pipeline.New(caps, orchestratorOptions(cfg))
	toolSvc := tools.NewService(cfg, orch, caps, nil, nil, nil)
	mcpServer := mcp.NewServer(cfg, toolSvc, ratelimit.New(), nil)
	return &App{
		Config:   cfg,
		Caps:     caps,
		Pipeline: orch,
		Store:    caps.Store,
		Cache:    caps.Cache,
		Tools:    toolSvc,
		MCP:      mcpServer,
	}
}

func orchestratorOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		BaseTTL:    cfg.Cache.BaseTTL,
		MinQuality: cfg.Cache.MinQualityRatio,
		Version:    version,
	}
}

func selectCache(cfg config.Config, sink cache.MetricsSink) (cache.Cache, error) {
	opts := cache.Options{Prefix: "pf:", Namespace: "cache", Metrics: sink}
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedis(cfg.Redis.URL, opts)
	case "memory":
		return cache.NewMemory(opts), nil
	default:
		if cfg.Redis.URL != "" {
			return cache.NewRedis(cfg.Redis.URL, opts)
		}
		return cache.NewMemory(opts), nil
	}
}

func selectEmbedder(cfg config.Config) embed.Provider {
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.APIKey != "" {
			return embed.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dim)
		}
	case "ollama":
		return embed.NewOllama(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dim)
	case "disabled":
		return nil
	}
	return embed.NewNoop(cfg.Embedding.Dim)
}

func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	return errors.Join(errs...)
}

func (a *App) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Store.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if err := a.Cache.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if a.Queue != nil {
			if err := a.Queue.Ping(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/debug", a.handleDebug)
	mux.HandleFunc("/mcp", a.MCP.HandleHTTP)
	mux.HandleFunc("/mcp/sse", a.MCP.HandleSSEStub)

	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	return srv.ListenAndServe()
}

func (a *App) handleDebug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var queueDepth int64
	if a.Queue != nil {
		queueDepth, _ = a.Queue.Depth(ctx)
	}
	stats, _ := a.Store.GetStats(ctx, 7)
	events, _ := a.Store.EventCounts(ctx, 7)

	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, "<html><body><h1>PromptForge Debug</h1>")
	_, _ = fmt.Fprintf(w, "<p>Mode: %s</p>", a.Pipeline.Mode())
	if a.Metrics != nil {
		hits, misses := a.Metrics.Snapshot()
		_, _ = fmt.Fprintf(w, "<p>Cache: %.0f%% hit rate (%d hits, %d misses)</p>", a.Metrics.HitRate()*100, hits, misses)
	}
	_, _ = fmt.Fprintf(w, "<p>Embedding queue: %d pending</p>", queueDepth)
	_, _ = fmt.Fprintf(w, "<h2>Library (7d)</h2>")
	_, _ = fmt.Fprintf(w, "<p>Prompts: %d, average score: %.2f</p>", stats.TotalPrompts, stats.AvgScore)
	_, _ = fmt.Fprintf(w, "<h2>Domains</h2><ul>")
	for _, name := range a.Caps.Registry.Domains() {
		_, _ = fmt.Fprintf(w, "<li>%s</li>", name)
	}
	_, _ = fmt.Fprintf(w, "</ul>")
	_, _ = fmt.Fprintf(w, "<h2>Events (7d)</h2><ul>")
	for name, count := range events {
		_, _ = fmt.Fprintf(w, "<li>%s: %d</li>", name, count)
	}
	_, _ = fmt.Fprintf(w, "</ul>")
	_, _ = fmt.Fprintf(w, "<h2>Probes</h2>")
	_, _ = fmt.Fprintf(w, "<ul><li><a href=\"/healthz\">liveness</a></li><li><a href=\"/readyz\">readiness</a></li></ul>")
	_, _ = fmt.Fprintf(w, "</body></html>")
}
