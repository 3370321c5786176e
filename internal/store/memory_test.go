package store

import (
	"context"
	"testing"
	"time"

	"promptforge/internal/fault"
)

func TestMemorySavePromptAssignsIDAndTimestamps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := &Prompt{Raw: "make a query", Refined: "Write a SQL query.", Domain: "sql", Score: 0.8}
	if err := m.SavePrompt(ctx, p); err != nil {
		t.Fatalf("save prompt: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected assigned prompt ID")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	got, err := m.GetPrompt(ctx, p.ID)
	if err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if got.Refined != "Write a SQL query." || got.Domain != "sql" {
		t.Fatalf("unexpected stored prompt: %+v", got)
	}
}

func TestMemorySavePromptKeepsCreatedAtOnUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	p := &Prompt{Raw: "first", Refined: "First.", Domain: "general"}
	if err := m.SavePrompt(ctx, p); err != nil {
		t.Fatalf("save prompt: %v", err)
	}

	m.now = func() time.Time { return base.Add(time.Hour) }
	p.Refined = "Second."
	if err := m.SavePrompt(ctx, p); err != nil {
		t.Fatalf("update prompt: %v", err)
	}

	got, err := m.GetPrompt(ctx, p.ID)
	if err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("expected created_at %v to survive update, got %v", base, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected updated_at to advance, got %v", got.UpdatedAt)
	}
	if got.Refined != "Second." {
		t.Fatalf("expected updated refined text, got %q", got.Refined)
	}
}

func TestMemoryGetPromptNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetPrompt(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing prompt")
	}
	if !fault.IsNotFound(err) {
		t.Fatalf("expected not_found fault, got %v", err)
	}
}

func TestMemorySearchPromptsRanksAndFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	prompts := []Prompt{
		{Raw: "query the users table", Refined: "Select from the users table where the users are active.", Domain: "sql"},
		{Raw: "users report", Refined: "Summarize user activity.", Domain: "sql"},
		{Raw: "deploy the service", Refined: "Deploy with zero downtime.", Domain: "devops"},
	}
	for i := range prompts {
		if err := m.SavePrompt(ctx, &prompts[i]); err != nil {
			t.Fatalf("save prompt %d: %v", i, err)
		}
	}

	results, err := m.SearchPrompts(ctx, "users", "sql", 10)
	if err != nil {
		t.Fatalf("search prompts: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 sql matches, got %d", len(results))
	}
	if results[0].PromptID != prompts[0].ID {
		t.Fatalf("expected prompt with most mentions ranked first, got %s", results[0].PromptID)
	}
	if results[0].Rank <= results[1].Rank {
		t.Fatalf("expected descending rank, got %v then %v", results[0].Rank, results[1].Rank)
	}
	for _, r := range results {
		if r.Domain != "sql" {
			t.Fatalf("expected sql-only results, got %q", r.Domain)
		}
	}

	limited, err := m.SearchPrompts(ctx, "users", "", 1)
	if err != nil {
		t.Fatalf("search with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to cap results, got %d", len(limited))
	}

	none, err := m.SearchPrompts(ctx, "", "", 10)
	if err != nil {
		t.Fatalf("empty query: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no results for empty query, got %d", len(none))
	}
}

func TestMemoryGetStatsWindow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	m.now = func() time.Time { return now.AddDate(0, 0, -60) }
	old := &Prompt{Raw: "old", Refined: "Old.", Domain: "sql", Score: 0.2}
	if err := m.SavePrompt(ctx, old); err != nil {
		t.Fatalf("save old prompt: %v", err)
	}

	m.now = func() time.Time { return now }
	for _, p := range []*Prompt{
		{Raw: "a", Refined: "A.", Domain: "sql", Score: 0.8},
		{Raw: "b", Refined: "B.", Domain: "devops", Score: 0.6},
	} {
		if err := m.SavePrompt(ctx, p); err != nil {
			t.Fatalf("save prompt: %v", err)
		}
	}

	stats, err := m.GetStats(ctx, 30)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.TotalPrompts != 2 {
		t.Fatalf("expected 2 prompts inside window, got %d", stats.TotalPrompts)
	}
	if stats.AvgScore < 0.699 || stats.AvgScore > 0.701 {
		t.Fatalf("expected avg score 0.7, got %v", stats.AvgScore)
	}
	if stats.Domains["sql"] != 1 || stats.Domains["devops"] != 1 {
		t.Fatalf("unexpected domain counts: %v", stats.Domains)
	}
	if stats.LastSavedAt == nil || !stats.LastSavedAt.Equal(now) {
		t.Fatalf("expected last saved at %v, got %v", now, stats.LastSavedAt)
	}
}

func TestMemoryEventCounts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, name := range []string{"prompt_refined", "prompt_refined", "cache_hit"} {
		if _, err := m.RecordEvent(ctx, name, map[string]any{"domain": "sql"}); err != nil {
			t.Fatalf("record event: %v", err)
		}
	}

	counts, err := m.EventCounts(ctx, 30)
	if err != nil {
		t.Fatalf("event counts: %v", err)
	}
	if counts["prompt_refined"] != 2 || counts["cache_hit"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestSnippetTruncatesLongText(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	got := snippet(long, 200)
	if len([]rune(got)) != 200 {
		t.Fatalf("expected 200 rune snippet, got %d", len([]rune(got)))
	}
	if snippet("short", 200) != "short" {
		t.Fatalf("expected short text unchanged")
	}
}
