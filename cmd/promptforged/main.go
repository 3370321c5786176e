package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"promptforge/internal/app"
	"promptforge/internal/config"
	"promptforge/internal/embed"
	"promptforge/internal/mcp"
	"promptforge/internal/queue"
	"promptforge/internal/store"
	"promptforge/internal/vector"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	cfgPath := os.Getenv("PF_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "serve":
		runServe(ctx, cfg)
	case "worker":
		runWorker(ctx, cfg)
	case "mcp-stdio":
		runStdio(ctx, cfg)
	default:
		usage()
	}
}

func runServe(ctx context.Context, cfg config.Config) {
	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	log.Printf("promptforged serving on %s mode=%s", cfg.HTTP.Addr, appInstance.Pipeline.Mode())
	if err := appInstance.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// runWorker drains the embedding queue: each job is a saved prompt ID
// whose refined text gets embedded and upserted into the vector index.
func runWorker(ctx context.Context, cfg config.Config) {
	if cfg.Database.DSN == "" {
		log.Fatalf("worker requires database.dsn (or PF_DB_DSN)")
	}
	if cfg.Redis.URL == "" {
		log.Fatalf("worker requires redis.url (or PF_REDIS_URL)")
	}
	if cfg.Qdrant.URL == "" {
		log.Fatalf("worker requires qdrant.url (or PF_QDRANT_URL)")
	}
	if cfg.Embedding.Provider == "disabled" {
		log.Fatalf("embedding.provider is disabled; nothing for the worker to do")
	}

	storeInstance, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer storeInstance.Close()
	if err := store.Migrate(ctx, storeInstance.DB()); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	jobs, err := queue.New(cfg.Redis.URL, cfg.Queue.Name)
	if err != nil {
		log.Fatalf("queue error: %v", err)
	}
	defer jobs.Close()

	var embedder embed.Provider
	switch cfg.Embedding.Provider {
	case "openai":
		embedder = embed.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dim)
	case "ollama":
		embedder = embed.NewOllama(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dim)
	default:
		embedder = embed.NewNoop(cfg.Embedding.Dim)
	}
	vecStore := vector.NewQdrant(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	if err := vecStore.EnsureCollection(ctx, embedder.Dim()); err != nil {
		log.Printf("qdrant ensure collection failed: %v", err)
	}

	concurrency := cfg.Queue.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	log.Printf("worker started concurrency=%d queue=%s", concurrency, cfg.Queue.Name)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return workerLoop(ctx, jobs, storeInstance, embedder, vecStore)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker error: %v", err)
	}
}

func workerLoop(ctx context.Context, jobs *queue.Queue, st *store.Postgres, embedder embed.Provider, vecStore vector.Store) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			id, err := jobs.PopPromptJob(ctx, 5*time.Second)
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("worker pop failed: %v", err)
				// A dead redis would otherwise spin this loop.
				if err := embed.Backoff(ctx, time.Second); err != nil {
					return err
				}
				continue
			}
			prompt, err := st.GetPrompt(ctx, id)
			if err != nil {
				log.Printf("worker prompt fetch failed id=%s: %v", id, err)
				continue
			}
			vecs, err := embedder.Embed(ctx, []string{prompt.Refined})
			if err != nil || len(vecs) == 0 {
				log.Printf("embedding failed id=%s: %v", id, err)
				continue
			}
			point := vector.PromptPoint(prompt.ID, vecs[0], prompt.Domain, prompt.Score, snippet(prompt.Refined))
			if err := vecStore.Upsert(ctx, []vector.Point{point}); err != nil {
				log.Printf("qdrant upsert failed id=%s: %v", id, err)
				continue
			}
			log.Printf("indexed prompt id=%s domain=%s", prompt.ID, prompt.Domain)
		}
	}
}

func runStdio(ctx context.Context, cfg config.Config) {
	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()
	if err := mcp.RunStdio(ctx, appInstance.MCP); err != nil {
		log.Fatalf("stdio error: %v", err)
	}
}

func usage() {
	fmt.Println("Usage: promptforged <serve|worker|mcp-stdio>")
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= 200 {
		return text
	}
	return string(runes[:200]) + "..."
}
