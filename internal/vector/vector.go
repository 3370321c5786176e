// Package vector stores prompt embeddings in qdrant and answers
// nearest-neighbour queries for similar-prompt lookup.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"promptforge/internal/fault"
)

type Store interface {
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]SearchHit, error)
	EnsureCollection(ctx context.Context, dim int) error
	Name() string
}

type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type SearchHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// PromptPoint builds the payload convention shared by the embedding
// worker and similar-prompt search: domain, quality score, and a short
// snippet of the refined text for display.
func PromptPoint(id string, vec []float32, domain string, score float64, snippet string) Point {
	return Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]any{
			"domain":  domain,
			"score":   score,
			"snippet": snippet,
		},
	}
}

// FilterDomain restricts a search to one prompt domain.
func FilterDomain(domain string) map[string]any {
	if domain == "" {
		return nil
	}
	return map[string]any{
		"must": []map[string]any{
			{"key": "domain", "match": map[string]any{"value": domain}},
		},
	}
}

const defaultCollection = "prompts_v1536"

type Qdrant struct {
	BaseURL    string
	Collection string
	Client     *http.Client
}

func NewQdrant(baseURL, collection string) *Qdrant {
	if collection == "" {
		collection = defaultCollection
	}
	return &Qdrant{BaseURL: baseURL, Collection: collection, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (q *Qdrant) Name() string { return "qdrant" }

type collectionSpec struct {
	Vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	} `json:"vectors"`
}

func (q *Qdrant) EnsureCollection(ctx context.Context, dim int) error {
	var spec collectionSpec
	spec.Vectors.Size = dim
	spec.Vectors.Distance = "Cosine"
	return q.do(ctx, http.MethodPut, "/collections/"+q.Collection, spec, nil)
}

func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	body := map[string]any{"points": points}
	return q.do(ctx, http.MethodPut, "/collections/"+q.Collection+"/points?wait=true", body, nil)
}

type searchQuery struct {
	Vector      []float32      `json:"vector"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
	Filter      map[string]any `json:"filter,omitempty"`
}

type searchReply struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	query := searchQuery{Vector: vector, Limit: limit, WithPayload: true, Filter: filter}
	var reply searchReply
	if err := q.do(ctx, http.MethodPost, "/collections/"+q.Collection+"/points/search", query, &reply); err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(reply.Result))
	for _, item := range reply.Result {
		// Qdrant point IDs may come back as numbers or strings.
		hits = append(hits, SearchHit{ID: fmt.Sprintf("%v", item.ID), Score: item.Score, Payload: item.Payload})
	}
	return hits, nil
}

// do issues one JSON round trip against the qdrant REST API and decodes
// the reply into out when out is non-nil. Connectivity failures come
// back as Unavailable faults so callers can fall to full-text search.
func (q *Qdrant) do(ctx context.Context, method, path string, in, out any) error {
	if q.BaseURL == "" {
		return fault.Invalidf("vector.qdrant", errors.New("url not configured"))
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, q.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := q.Client.Do(req)
	if err != nil {
		return fault.FromTransport("vector.qdrant", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fault.Unavailablef("vector.qdrant", fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(excerpt)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
