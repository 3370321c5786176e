// Package tools implements the MCP tool surface: the refinement
// pipeline plus the saved-prompt library and its search paths.
package tools

import (
	"context"
	"errors"
	"strings"

	"promptforge/internal/analysis"
	"promptforge/internal/config"
	"promptforge/internal/embed"
	"promptforge/internal/fault"
	"promptforge/internal/pipeline"
	"promptforge/internal/queue"
	"promptforge/internal/registry"
	"promptforge/internal/score"
	"promptforge/internal/store"
	"promptforge/internal/telemetry"
	"promptforge/internal/validate"
	"promptforge/internal/vector"
)

type Service struct {
	Config    config.Config
	Pipeline  *pipeline.Orchestrator
	Registry  *registry.Registry
	Analyzer  *analysis.Analyzer
	Validator *validate.Validator
	Scorer    *score.Scorer
	Store     store.Store
	Vector    vector.Store
	Embedder  embed.Provider
	Queue     *queue.Queue
	Telemetry telemetry.Sink
}

func NewService(cfg config.Config, orch *pipeline.Orchestrator, caps pipeline.Capabilities, vectorStore vector.Store, embedder embed.Provider, jobs *queue.Queue) *Service {
	return &Service{
		Config:    cfg,
		Pipeline:  orch,
		Registry:  caps.Registry,
		Analyzer:  caps.Analyzer,
		Validator: caps.Validator,
		Scorer:    caps.Scorer,
		Store:     caps.Store,
		Vector:    vectorStore,
		Embedder:  embedder,
		Queue:     jobs,
		Telemetry: caps.Telemetry,
	}
}

func (s *Service) RefinePrompt(ctx context.Context, in pipeline.ProcessInput) (any, error) {
	out, err := s.Pipeline.Process(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": out}, nil
}

func (s *Service) ValidatePrompt(ctx context.Context, prompt, domain string) (any, error) {
	res := s.Analyzer.Analyze(prompt)
	domain = s.resolveDomain(domain, res)
	validation := s.Validator.Validate(prompt, domain, &res)
	if !validation.IsValid {
		s.Telemetry.Track(ctx, telemetry.EventValidationFailed, map[string]any{
			"domain": domain,
			"errors": len(validation.Errors),
		})
	}
	return map[string]any{"validation": validation, "domain": domain}, nil
}

func (s *Service) ScorePrompt(ctx context.Context, prompt, domain string) (any, error) {
	res := s.Analyzer.Analyze(prompt)
	domain = s.resolveDomain(domain, res)
	validation := s.Validator.Validate(prompt, domain, &res)
	detail := s.Scorer.CalculateDetailed(score.Context{
		Refined:    prompt,
		Domain:     domain,
		Analysis:   &res,
		Validation: &validation,
	})
	return map[string]any{"score": detail.Score, "detail": detail, "domain": domain}, nil
}

// SavePrompt persists a prompt and hands its ID to the embedding queue
// so the worker can index it for similarity search. The queue push is
// best effort; a saved prompt without a vector is still searchable via
// full text.
func (s *Service) SavePrompt(ctx context.Context, p store.Prompt) (any, error) {
	if strings.TrimSpace(p.Raw) == "" && strings.TrimSpace(p.Refined) == "" {
		return nil, fault.Invalidf("tools.save_prompt", errors.New("prompt text is empty"))
	}
	if p.Refined == "" {
		p.Refined = p.Raw
	}
	if p.Raw == "" {
		p.Raw = p.Refined
	}
	if p.Domain == "" {
		p.Domain = "general"
	}
	if err := s.Store.SavePrompt(ctx, &p); err != nil {
		return nil, err
	}
	queued := false
	if s.Queue != nil {
		if err := s.Queue.PushPromptJob(ctx, p.ID); err == nil {
			queued = true
		}
	}
	s.Telemetry.Track(ctx, telemetry.EventPromptSaved, map[string]any{
		"domain": p.Domain,
		"score":  p.Score,
		"queued": queued,
	})
	return map[string]any{"id": p.ID, "embeddingQueued": queued}, nil
}

func (s *Service) GetPrompt(ctx context.Context, id string) (any, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fault.Invalidf("tools.get_prompt", errors.New("missing prompt id"))
	}
	p, err := s.Store.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"prompt": p}, nil
}

func (s *Service) SearchPrompts(ctx context.Context, query, domain string, limit int) (any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fault.Invalidf("tools.search_prompts", errors.New("missing query"))
	}
	results, err := s.Store.SearchPrompts(ctx, query, domain, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": results, "source": "fts"}, nil
}

// SimilarPrompts answers nearest-neighbour search over the vector index
// when one is wired, and falls back to full-text search otherwise or
// when the vector path fails.
func (s *Service) SimilarPrompts(ctx context.Context, text, domain string, topK int) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fault.Invalidf("tools.similar_prompts", errors.New("missing text"))
	}
	if topK <= 0 {
		topK = 5
	}
	if s.Vector != nil && s.Embedder != nil {
		results, err := s.searchVector(ctx, text, domain, topK)
		if err == nil {
			return map[string]any{"results": results, "source": "vector"}, nil
		}
		s.Telemetry.Error(ctx, telemetry.EventPipelineError, err, map[string]any{"op": "similar_prompts"})
	}
	results, err := s.Store.SearchPrompts(ctx, text, domain, topK)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": results, "source": "fts"}, nil
}

func (s *Service) searchVector(ctx context.Context, text, domain string, topK int) ([]map[string]any, error) {
	vecs, err := s.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("embedder returned no vectors")
	}
	hits, err := s.Vector.Search(ctx, vecs[0], topK, vector.FilterDomain(domain))
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		results = append(results, map[string]any{
			"promptId": hit.ID,
			"score":    hit.Score,
			"domain":   hit.Payload["domain"],
			"snippet":  hit.Payload["snippet"],
		})
	}
	return results, nil
}

func (s *Service) GetStats(ctx context.Context, days int) (any, error) {
	if days <= 0 {
		days = 30
	}
	stats, err := s.Store.GetStats(ctx, days)
	if err != nil {
		return nil, err
	}
	events, err := s.Store.EventCounts(ctx, days)
	if err != nil {
		return nil, err
	}
	return map[string]any{"stats": stats, "events": events, "days": days}, nil
}

func (s *Service) ListDomains(_ context.Context) (any, error) {
	domains := make([]map[string]any, 0)
	for _, name := range s.Registry.Domains() {
		pack := s.Registry.Pack(name)
		domains = append(domains, map[string]any{
			"name":        pack.Name,
			"description": pack.Description,
			"keywords":    pack.Keywords,
			"examples":    len(pack.Examples),
		})
	}
	return map[string]any{"domains": domains}, nil
}

func (s *Service) resolveDomain(domain string, res analysis.Result) string {
	if domain != "" {
		return domain
	}
	if len(res.DomainHints) > 0 {
		return res.DomainHints[0]
	}
	return "general"
}
