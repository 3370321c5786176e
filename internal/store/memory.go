package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptforge/internal/fault"
)

// Memory keeps everything in process. It backs offline mode and tests;
// search is a naive term-count ranking rather than real full text
// search, which is close enough for a handful of local prompts.
type Memory struct {
	mu        sync.RWMutex
	prompts   map[string]Prompt
	events    []memoryEvent
	toolCalls []memoryToolCall
	now       func() time.Time
}

type memoryEvent struct {
	name string
	at   time.Time
}

type memoryToolCall struct {
	tool string
	at   time.Time
}

func NewMemory() *Memory {
	return &Memory{
		prompts: map[string]Prompt{},
		now:     time.Now,
	}
}

func (m *Memory) SavePrompt(ctx context.Context, p *Prompt) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := m.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *p
	if existing, ok := m.prompts[p.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	m.prompts[p.ID] = stored
	return nil
}

func (m *Memory) GetPrompt(ctx context.Context, id string) (Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[id]
	if !ok {
		return Prompt{}, fault.NotFoundf("store.get_prompt", fmt.Errorf("prompt %s", id))
	}
	return p, nil
}

func (m *Memory) SearchPrompts(ctx context.Context, query string, domain string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, p := range m.prompts {
		if domain != "" && p.Domain != domain {
			continue
		}
		haystack := strings.ToLower(p.Raw + " " + p.Refined)
		rank := 0.0
		for _, term := range terms {
			rank += float64(strings.Count(haystack, term))
		}
		if rank == 0 {
			continue
		}
		results = append(results, SearchResult{
			PromptID: p.ID,
			Domain:   p.Domain,
			Score:    p.Score,
			Rank:     rank,
			Snippet:  snippet(p.Refined, 200),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank > results[j].Rank
		}
		return results[i].PromptID < results[j].PromptID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Memory) GetStats(ctx context.Context, days int) (Stats, error) {
	if days <= 0 {
		days = 30
	}
	since := m.now().UTC().AddDate(0, 0, -days)

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Domains: map[string]int64{}}
	var scoreSum float64
	for _, p := range m.prompts {
		if p.CreatedAt.Before(since) {
			continue
		}
		stats.TotalPrompts++
		scoreSum += p.Score
		stats.Domains[p.Domain]++
		if stats.LastSavedAt == nil || p.CreatedAt.After(*stats.LastSavedAt) {
			t := p.CreatedAt
			stats.LastSavedAt = &t
		}
	}
	if stats.TotalPrompts > 0 {
		stats.AvgScore = scoreSum / float64(stats.TotalPrompts)
	}
	return stats, nil
}

func (m *Memory) RecordEvent(ctx context.Context, name string, properties map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, memoryEvent{name: name, at: m.now().UTC()})
	return uuid.NewString(), nil
}

func (m *Memory) EventCounts(ctx context.Context, days int) (map[string]int64, error) {
	if days <= 0 {
		days = 30
	}
	since := m.now().UTC().AddDate(0, 0, -days)

	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int64{}
	for _, ev := range m.events {
		if ev.at.Before(since) {
			continue
		}
		counts[ev.name]++
	}
	return counts, nil
}

func (m *Memory) RecordToolCall(ctx context.Context, tool string, inputsHash string, outputsHash string, latencyMS int, ok bool, errorCode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = append(m.toolCalls, memoryToolCall{tool: tool, at: m.now().UTC()})
	return uuid.NewString(), nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
