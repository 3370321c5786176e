// Package store persists refined prompts, telemetry events and tool
// call records. Postgres is the production backend; Memory stands in
// when no database is configured.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"promptforge/internal/fault"
)

// Store is the persistence surface the pipeline and tool layer depend
// on. Postgres and Memory both satisfy it.
type Store interface {
	SavePrompt(ctx context.Context, p *Prompt) error
	GetPrompt(ctx context.Context, id string) (Prompt, error)
	SearchPrompts(ctx context.Context, query string, domain string, limit int) ([]SearchResult, error)
	GetStats(ctx context.Context, days int) (Stats, error)
	RecordEvent(ctx context.Context, name string, properties map[string]any) (string, error)
	EventCounts(ctx context.Context, days int) (map[string]int64, error)
	RecordToolCall(ctx context.Context, tool string, inputsHash string, outputsHash string, latencyMS int, ok bool, errorCode string) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Prompt is one saved refinement. Scores, Tags and Metadata live in
// jsonb columns.
type Prompt struct {
	ID           string         `json:"id"`
	Raw          string         `json:"raw"`
	Refined      string         `json:"refined"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Domain       string         `json:"domain"`
	Tone         string         `json:"tone,omitempty"`
	Score        float64        `json:"score"`
	Scores       Scores         `json:"scores"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Scores is the per-dimension quality breakdown stored alongside the
// overall score.
type Scores struct {
	Clarity      float64 `json:"clarity"`
	Specificity  float64 `json:"specificity"`
	Structure    float64 `json:"structure"`
	Completeness float64 `json:"completeness"`
	Overall      float64 `json:"overall"`
}

type SearchResult struct {
	PromptID string  `json:"promptId"`
	Domain   string  `json:"domain"`
	Score    float64 `json:"score"`
	Rank     float64 `json:"rank"`
	Snippet  string  `json:"snippet"`
}

// Stats aggregates saved prompts over a trailing window.
type Stats struct {
	TotalPrompts int64            `json:"totalPrompts"`
	AvgScore     float64          `json:"avgScore"`
	Domains      map[string]int64 `json:"domains"`
	LastSavedAt  *time.Time       `json:"lastSavedAt,omitempty"`
}

// Postgres is the database-backed Store.
type Postgres struct {
	db *sql.DB
}

func Open(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Postgres{db: db}, nil
}

func (s *Postgres) DB() *sql.DB {
	return s.db
}

func (s *Postgres) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fault.FromTransport("store.ping", err)
	}
	return nil
}

func (s *Postgres) SavePrompt(ctx context.Context, p *Prompt) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	scoresJSON, _ := json.Marshal(p.Scores)
	tagsJSON, _ := json.Marshal(p.Tags)
	metadataJSON, _ := json.Marshal(p.Metadata)
	_, err := s.db.ExecContext(ctx, `INSERT INTO prompts (id, raw, refined, system_prompt, domain, tone, score, scores, tags, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET raw = EXCLUDED.raw, refined = EXCLUDED.refined, system_prompt = EXCLUDED.system_prompt,
		domain = EXCLUDED.domain, tone = EXCLUDED.tone, score = EXCLUDED.score, scores = EXCLUDED.scores,
		tags = EXCLUDED.tags, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at`,
		p.ID, p.Raw, p.Refined, p.SystemPrompt, p.Domain, p.Tone, p.Score, scoresJSON, tagsJSON, metadataJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fault.FromTransport("store.save_prompt", err)
	}
	return nil
}

func (s *Postgres) GetPrompt(ctx context.Context, id string) (Prompt, error) {
	var p Prompt
	var scoresJSON, tagsJSON, metadataJSON []byte
	row := s.db.QueryRowContext(ctx, `SELECT id, raw, refined, system_prompt, domain, tone, score, scores, tags, metadata, created_at, updated_at
		FROM prompts WHERE id = $1`, id)
	if err := row.Scan(&p.ID, &p.Raw, &p.Refined, &p.SystemPrompt, &p.Domain, &p.Tone, &p.Score, &scoresJSON, &tagsJSON, &metadataJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, fault.NotFoundf("store.get_prompt", fmt.Errorf("prompt %s", id))
		}
		return p, fault.FromTransport("store.get_prompt", err)
	}
	_ = json.Unmarshal(scoresJSON, &p.Scores)
	_ = json.Unmarshal(tagsJSON, &p.Tags)
	_ = json.Unmarshal(metadataJSON, &p.Metadata)
	return p, nil
}

func (s *Postgres) SearchPrompts(ctx context.Context, query string, domain string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT id, domain, score, ts_rank_cd(to_tsvector('simple', raw || ' ' || refined), plainto_tsquery('simple', $1)) AS rank,
		substring(refined from 1 for 200) AS snippet
		FROM prompts
		WHERE to_tsvector('simple', raw || ' ' || refined) @@ plainto_tsquery('simple', $1)`
	args := []any{query}
	if domain != "" {
		q += " AND domain = $2"
		args = append(args, domain)
	}
	q += fmt.Sprintf(" ORDER BY rank DESC, updated_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fault.FromTransport("store.search_prompts", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.PromptID, &r.Domain, &r.Score, &r.Rank, &r.Snippet); err != nil {
			return nil, fault.FromTransport("store.search_prompts", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.FromTransport("store.search_prompts", err)
	}
	return results, nil
}

func (s *Postgres) GetStats(ctx context.Context, days int) (Stats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	stats := Stats{Domains: map[string]int64{}}

	row := s.db.QueryRowContext(ctx, `SELECT count(*), coalesce(avg(score), 0), max(created_at)
		FROM prompts WHERE created_at >= $1`, since)
	var last sql.NullTime
	if err := row.Scan(&stats.TotalPrompts, &stats.AvgScore, &last); err != nil {
		return stats, fault.FromTransport("store.get_stats", err)
	}
	if last.Valid {
		t := last.Time
		stats.LastSavedAt = &t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT domain, count(*) FROM prompts WHERE created_at >= $1 GROUP BY domain`, since)
	if err != nil {
		return stats, fault.FromTransport("store.get_stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var domain string
		var n int64
		if err := rows.Scan(&domain, &n); err != nil {
			return stats, fault.FromTransport("store.get_stats", err)
		}
		stats.Domains[domain] = n
	}
	if err := rows.Err(); err != nil {
		return stats, fault.FromTransport("store.get_stats", err)
	}
	return stats, nil
}

func (s *Postgres) RecordEvent(ctx context.Context, name string, properties map[string]any) (string, error) {
	id := uuid.NewString()
	propertiesJSON, _ := json.Marshal(properties)
	_, err := s.db.ExecContext(ctx, `INSERT INTO telemetry_events (id, event, properties) VALUES ($1,$2,$3)`,
		id, name, propertiesJSON)
	if err != nil {
		return "", fault.FromTransport("store.record_event", err)
	}
	return id, nil
}

func (s *Postgres) EventCounts(ctx context.Context, days int) (map[string]int64, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `SELECT event, count(*) FROM telemetry_events WHERE created_at >= $1 GROUP BY event`, since)
	if err != nil {
		return nil, fault.FromTransport("store.event_counts", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var event string
		var n int64
		if err := rows.Scan(&event, &n); err != nil {
			return nil, fault.FromTransport("store.event_counts", err)
		}
		counts[event] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fault.FromTransport("store.event_counts", err)
	}
	return counts, nil
}

func (s *Postgres) RecordToolCall(ctx context.Context, tool string, inputsHash string, outputsHash string, latencyMS int, ok bool, errorCode string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO tool_calls (id, tool_name, inputs_hash, outputs_hash, latency_ms, ok, error_code) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, tool, inputsHash, outputsHash, latencyMS, ok, errorCode)
	if err != nil {
		return "", fault.FromTransport("store.record_tool_call", err)
	}
	return id, nil
}

// snippet trims s to the first n runes for search previews.
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
