// Package pipeline orchestrates one refinement request: cache lookup,
// analysis, domain rules, optimization, validation, scoring, template
// and example generation, then a quality-weighted cache write. Failures
// are classified once at this boundary; connectivity failures degrade
// to a synthetic result instead of propagating.
package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"promptforge/internal/analysis"
	"promptforge/internal/cache"
	"promptforge/internal/fault"
	"promptforge/internal/observability"
	"promptforge/internal/refine"
	"promptforge/internal/registry"
	"promptforge/internal/score"
	"promptforge/internal/store"
	"promptforge/internal/telemetry"
	"promptforge/internal/validate"
)

const (
	ModeLive    = "live"
	ModeOffline = "offline"

	// modeDegraded only ever appears in result metadata; it is not a
	// construction mode.
	modeDegraded = "degraded"

	defaultModel = "local-rules"
)

// Capabilities is the collaborator set selected at construction time.
// Live wiring talks to real backends; offline wiring swaps cache,
// store, telemetry and observability for in-process stand-ins and
// routes Process through the normalization fast path.
type Capabilities struct {
	Mode      string
	Registry  *registry.Registry
	Analyzer  *analysis.Analyzer
	Validator *validate.Validator
	Scorer    *score.Scorer
	Refiner   *refine.Refiner
	Cache     cache.Cache
	Store     store.Store
	Telemetry telemetry.Sink
	Observer  observability.Observer
}

func LiveCapabilities(reg *registry.Registry, c cache.Cache, st store.Store, sink telemetry.Sink, obs observability.Observer) Capabilities {
	if sink == nil {
		sink = telemetry.Noop{}
	}
	if obs == nil {
		obs = observability.Noop{}
	}
	return Capabilities{
		Mode:      ModeLive,
		Registry:  reg,
		Analyzer:  analysis.New(reg),
		Validator: validate.New(reg),
		Scorer:    score.New(reg),
		Refiner:   refine.New(reg),
		Cache:     c,
		Store:     st,
		Telemetry: sink,
		Observer:  obs,
	}
}

func OfflineCapabilities(reg *registry.Registry) Capabilities {
	return Capabilities{
		Mode:      ModeOffline,
		Registry:  reg,
		Analyzer:  analysis.New(reg),
		Validator: validate.New(reg),
		Scorer:    score.New(reg),
		Refiner:   refine.New(reg),
		Cache:     cache.NewMemory(cache.Options{Prefix: "pf:", Namespace: "offline"}),
		Store:     store.NewMemory(),
		Telemetry: telemetry.Noop{},
		Observer:  observability.Noop{},
	}
}

type Options struct {
	// BaseTTL is the cache lifetime of a perfect-score result. The
	// effective TTL is BaseTTL scaled by max(MinQuality, overall).
	BaseTTL    time.Duration
	MinQuality float64
	Version    string
	Logger     *log.Logger
}

type Orchestrator struct {
	caps       Capabilities
	baseTTL    time.Duration
	minQuality float64
	version    string
	logger     *log.Logger
	group      singleflight.Group
	now        func() time.Time
}

func New(caps Capabilities, opts Options) *Orchestrator {
	if opts.BaseTTL <= 0 {
		opts.BaseTTL = time.Hour
	}
	if opts.MinQuality <= 0 || opts.MinQuality > 1 {
		opts.MinQuality = 0.5
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Orchestrator{
		caps:       caps,
		baseTTL:    opts.BaseTTL,
		minQuality: opts.MinQuality,
		version:    opts.Version,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

func (o *Orchestrator) Mode() string {
	return o.caps.Mode
}

// Process runs the full pipeline for one input. It returns an error
// only for unclassified failures; connectivity failures and offline
// mode both yield a complete synthetic result instead.
func (o *Orchestrator) Process(ctx context.Context, in ProcessInput) (ProcessResult, error) {
	started := o.now()
	requestID := observability.NewRequestID()
	span := o.caps.Observer.StartSpan("pipeline.process")

	if strings.TrimSpace(in.Raw) == "" {
		out := o.emptyResult(in, requestID, started)
		o.caps.Telemetry.Track(ctx, telemetry.EventValidationFailed, map[string]any{"reason": "empty_prompt"})
		o.caps.Observer.FinishSpan(span, nil)
		return out, nil
	}

	if o.caps.Mode == ModeOffline {
		out := o.processOffline(in, requestID, started)
		o.caps.Observer.FinishSpan(span, nil)
		return out, nil
	}

	out, err := o.processLive(ctx, in, span, requestID, started)
	if err != nil {
		if fault.IsUnavailable(err) {
			o.caps.Observer.AddSpanLog(span, "degraded fallback", map[string]any{"error": err.Error()})
			o.caps.Telemetry.Error(ctx, telemetry.EventDegradedFallback, err, map[string]any{"domain": in.Domain})
			out = o.fallbackResult(in, requestID, started)
			o.caps.Observer.FinishSpan(span, nil)
			return out, nil
		}
		elapsed := o.now().Sub(started)
		o.logger.Printf("pipeline failed domain=%s elapsed_ms=%d input_len=%d error=%v", in.Domain, elapsed.Milliseconds(), len(in.Raw), err)
		o.caps.Observer.TrackError("pipeline.process", err)
		o.caps.Observer.FinishSpan(span, err)
		return ProcessResult{}, err
	}
	o.caps.Observer.FinishSpan(span, nil)
	return out, nil
}

func (o *Orchestrator) processLive(ctx context.Context, in ProcessInput, span *observability.Span, requestID string, started time.Time) (ProcessResult, error) {
	key := CacheKey(in)

	cached, hit, err := o.caps.Cache.GetRaw(ctx, key)
	if err != nil {
		return ProcessResult{}, err
	}
	if hit {
		var out ProcessResult
		if jsonErr := json.Unmarshal([]byte(cached), &out); jsonErr == nil {
			out.Metadata.CacheHit = true
			out.Metadata.ProcessingTime = o.now().Sub(started).Milliseconds()
			out.Metadata.RequestID = requestID
			o.caps.Observer.AddSpanLog(span, "cache hit", map[string]any{"key": key})
			o.caps.Telemetry.Track(ctx, telemetry.EventCacheHit, map[string]any{"key": key})
			return out, nil
		}
		// Unparseable entry: fall through and recompute.
	}
	o.caps.Telemetry.Track(ctx, telemetry.EventCacheMiss, map[string]any{"key": key})

	// Concurrent misses on the same key share one computation.
	v, err, _ := o.group.Do(key, func() (any, error) {
		return o.compute(ctx, in, key, requestID, started)
	})
	if err != nil {
		return ProcessResult{}, err
	}
	return v.(ProcessResult), nil
}

// compute runs the miss path in strict data-dependency order and
// writes the result through the cache with a quality-weighted TTL.
func (o *Orchestrator) compute(ctx context.Context, in ProcessInput, key, requestID string, started time.Time) (ProcessResult, error) {
	res := o.caps.Analyzer.Analyze(in.Raw)
	domain := o.resolveDomain(in, res)

	ruled := o.caps.Refiner.ApplyDomainRules(in.Raw, domain, &res)
	optimized := o.caps.Refiner.Optimize(ruled.Refined, in.Tone, &res)
	refined := optimized.Refined
	rules := append(ruled.RulesApplied, optimized.RulesApplied...)

	var template *refine.Template
	if o.wantsTemplate(in, res) {
		tpl := o.caps.Refiner.GenerateTemplate(refined, in.Variables, domain)
		template = &tpl
	}

	validation := o.caps.Validator.Validate(in.Raw, domain, &res)

	refinedAnalysis := o.caps.Analyzer.Analyze(refined)
	detail := o.caps.Scorer.CalculateDetailed(score.Context{
		Refined:    refined,
		Domain:     domain,
		Analysis:   &refinedAnalysis,
		Validation: &validation,
	})

	systemPrompt := o.caps.Refiner.GenerateSystemPrompt(domain, &res, in.Context)

	var examples []registry.Example
	if o.wantsExamples(domain, res, detail.Score) {
		examples = o.caps.Refiner.GenerateExamples(refined, domain, &res)
	}

	out := ProcessResult{
		Original:     in.Raw,
		Refined:      refined,
		SystemPrompt: systemPrompt,
		Analysis:     res,
		Validation:   validation,
		Score:        detail.Score,
		ScoreDetail:  &detail,
		Suggestions:  validation.Suggestions,
		Template:     template,
		Examples:     examples,
		Metadata: Metadata{
			Domain:         domain,
			Tone:           in.Tone,
			ProcessingTime: o.now().Sub(started).Milliseconds(),
			Version:        o.version,
			ModelUsed:      o.modelUsed(in),
			CacheHit:       false,
			RulesApplied:   rules,
			TemplateUsed:   template != nil,
			RequestID:      requestID,
			Mode:           ModeLive,
		},
	}

	if encoded, jsonErr := json.Marshal(out); jsonErr == nil {
		if err := o.caps.Cache.SetRaw(ctx, key, string(encoded), o.ttlFor(detail.Score.Overall)); err != nil {
			return ProcessResult{}, err
		}
	}

	o.caps.Telemetry.Track(ctx, telemetry.EventPromptProcessed, map[string]any{
		"domain":     domain,
		"overall":    detail.Score.Overall,
		"elapsed_ms": out.Metadata.ProcessingTime,
	})
	o.caps.Observer.RecordMetric("quality_score", detail.Score.Overall, map[string]string{"domain": domain})
	return out, nil
}

// processOffline is the dependency-free fast path: local normalization
// plus local validation, neutral scores, no cache traffic.
func (o *Orchestrator) processOffline(in ProcessInput, requestID string, started time.Time) ProcessResult {
	res := o.caps.Analyzer.Analyze(in.Raw)
	domain := o.resolveDomain(in, res)
	norm := o.caps.Refiner.Normalize(in.Raw, domain)
	validation := o.caps.Validator.Validate(in.Raw, domain, &res)

	return ProcessResult{
		Original:     in.Raw,
		Refined:      norm.Refined,
		SystemPrompt: o.caps.Registry.Pack(domain).SystemPrompt,
		Analysis:     res,
		Validation:   validation,
		Score:        neutralScore(),
		Suggestions:  validation.Suggestions,
		Metadata: Metadata{
			Domain:         domain,
			Tone:           in.Tone,
			ProcessingTime: o.now().Sub(started).Milliseconds(),
			Version:        o.version,
			ModelUsed:      o.modelUsed(in),
			CacheHit:       false,
			RulesApplied:   norm.RulesApplied,
			TemplateUsed:   false,
			RequestID:      requestID,
			Mode:           ModeOffline,
		},
	}
}

// fallbackResult is the degraded answer for connectivity failures:
// identity refinement, neutral scores, locally computed validation.
func (o *Orchestrator) fallbackResult(in ProcessInput, requestID string, started time.Time) ProcessResult {
	res := o.caps.Analyzer.Analyze(in.Raw)
	domain := o.resolveDomain(in, res)
	validation := o.caps.Validator.Validate(in.Raw, domain, &res)

	return ProcessResult{
		Original:     in.Raw,
		Refined:      in.Raw,
		SystemPrompt: o.caps.Registry.Pack(domain).SystemPrompt,
		Analysis:     res,
		Validation:   validation,
		Score:        neutralScore(),
		Suggestions:  validation.Suggestions,
		Metadata: Metadata{
			Domain:         domain,
			Tone:           in.Tone,
			ProcessingTime: o.now().Sub(started).Milliseconds(),
			Version:        o.version,
			ModelUsed:      o.modelUsed(in),
			CacheHit:       false,
			TemplateUsed:   false,
			RequestID:      requestID,
			Mode:           modeDegraded,
		},
	}
}

func (o *Orchestrator) emptyResult(in ProcessInput, requestID string, started time.Time) ProcessResult {
	res := o.caps.Analyzer.Analyze(in.Raw)
	domain := o.resolveDomain(in, res)
	validation := o.caps.Validator.Validate(in.Raw, domain, &res)

	return ProcessResult{
		Original:    in.Raw,
		Refined:     in.Raw,
		Analysis:    res,
		Validation:  validation,
		Score:       score.QualityScore{},
		Suggestions: validation.Suggestions,
		Metadata: Metadata{
			Domain:         domain,
			Tone:           in.Tone,
			ProcessingTime: o.now().Sub(started).Milliseconds(),
			Version:        o.version,
			ModelUsed:      o.modelUsed(in),
			CacheHit:       false,
			RequestID:      requestID,
			Mode:           o.caps.Mode,
		},
	}
}

func (o *Orchestrator) resolveDomain(in ProcessInput, res analysis.Result) string {
	if in.Domain != "" {
		return in.Domain
	}
	if len(res.DomainHints) > 0 {
		return res.DomainHints[0]
	}
	return "general"
}

func (o *Orchestrator) wantsTemplate(in ProcessInput, res analysis.Result) bool {
	if len(in.Variables) > 0 || res.Complexity > 0.7 || len(res.DomainHints) > 1 {
		return true
	}
	for _, n := range analysis.RepeatedWords(res.Tokens) {
		if n >= 3 {
			return true
		}
	}
	return false
}

func (o *Orchestrator) wantsExamples(domain string, res analysis.Result, qs score.QualityScore) bool {
	if res.Complexity > 0.6 || qs.Clarity < 0.7 {
		return true
	}
	switch domain {
	case "sql", "cine", "saas":
		return true
	}
	return false
}

// ttlFor scales the base TTL by the overall score with a quality
// floor, so better refinements stay cached longer.
func (o *Orchestrator) ttlFor(overall float64) time.Duration {
	ratio := overall
	if ratio < o.minQuality {
		ratio = o.minQuality
	}
	if ratio > 1 {
		ratio = 1
	}
	secs := math.Floor(o.baseTTL.Seconds() * ratio)
	return time.Duration(secs) * time.Second
}

func (o *Orchestrator) modelUsed(in ProcessInput) string {
	if in.TargetModel != "" {
		return in.TargetModel
	}
	return defaultModel
}

func neutralScore() score.QualityScore {
	return score.QualityScore{
		Clarity:      0.5,
		Specificity:  0.5,
		Structure:    0.5,
		Completeness: 0.5,
		Overall:      0.5,
	}
}
