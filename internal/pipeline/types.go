package pipeline

import (
	"promptforge/internal/analysis"
	"promptforge/internal/refine"
	"promptforge/internal/registry"
	"promptforge/internal/score"
	"promptforge/internal/validate"
)

// ProcessInput is one refinement request. An empty Raw is a validation
// failure, not a transport error.
type ProcessInput struct {
	Raw         string            `json:"raw"`
	Domain      string            `json:"domain,omitempty"`
	Tone        string            `json:"tone,omitempty"`
	Context     string            `json:"context,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	TargetModel string            `json:"targetModel,omitempty"`
}

// ProcessResult is always fully populated on a non-error return,
// including the degraded and offline paths.
type ProcessResult struct {
	Original     string                   `json:"original"`
	Refined      string                   `json:"refined"`
	SystemPrompt string                   `json:"systemPrompt"`
	Analysis     analysis.Result          `json:"analysis"`
	Validation   validate.Result          `json:"validation"`
	Score        score.QualityScore       `json:"score"`
	ScoreDetail  *score.CalculationResult `json:"scoreDetail,omitempty"`
	Suggestions  []validate.Suggestion    `json:"suggestions"`
	Template     *refine.Template         `json:"template,omitempty"`
	Examples     []registry.Example       `json:"examples,omitempty"`
	Metadata     Metadata                 `json:"metadata"`
}

type Metadata struct {
	Domain         string   `json:"domain"`
	Tone           string   `json:"tone,omitempty"`
	ProcessingTime int64    `json:"processingTime"`
	Version        string   `json:"version"`
	ModelUsed      string   `json:"modelUsed"`
	CacheHit       bool     `json:"cacheHit"`
	RulesApplied   []string `json:"rulesApplied,omitempty"`
	TemplateUsed   bool     `json:"templateUsed"`
	RequestID      string   `json:"requestId,omitempty"`
	Mode           string   `json:"mode"`
}
