// Package validate implements the heuristic prompt validator: blocking
// errors, advisory warnings, remediation suggestions and the closed-form
// quality metrics.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"promptforge/internal/analysis"
	"promptforge/internal/registry"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type Warning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

type Suggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Before  string `json:"before,omitempty"`
	After   string `json:"after,omitempty"`
}

// Metrics are the six [0,1] quality dimensions. Each is clamped once,
// after summation.
type Metrics struct {
	Clarity       float64 `json:"clarity"`
	Specificity   float64 `json:"specificity"`
	Structure     float64 `json:"structure"`
	Completeness  float64 `json:"completeness"`
	Consistency   float64 `json:"consistency"`
	Actionability float64 `json:"actionability"`
}

// Result is recomputed on every call and never persisted.
type Result struct {
	IsValid        bool         `json:"isValid"`
	Errors         []Error      `json:"errors"`
	Warnings       []Warning    `json:"warnings"`
	Suggestions    []Suggestion `json:"suggestions"`
	QualityMetrics Metrics      `json:"qualityMetrics"`
}

// Thresholds gates every error and warning check. Zero values are never
// used directly; construct via DefaultThresholds.
type Thresholds struct {
	MinLength            int
	MaxLength            int
	WarnLength           int
	AmbiguityError       float64
	AmbiguityWarn        float64
	ReadabilityWarn      float64
	ComplexityWarn       float64
	IncompleteComplexity float64
	IncompleteLength     int
	MinTokens            int
	ShortTokens          int
	RunOnWords           int
	FormatComplexity     float64
	ExamplesComplexity   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLength:            10,
		MaxLength:            5000,
		WarnLength:           1000,
		AmbiguityError:       0.8,
		AmbiguityWarn:        0.7,
		ReadabilityWarn:      0.3,
		ComplexityWarn:       0.8,
		IncompleteComplexity: 0.3,
		IncompleteLength:     25,
		MinTokens:            3,
		ShortTokens:          5,
		RunOnWords:           25,
		FormatComplexity:     0.5,
		ExamplesComplexity:   0.7,
	}
}

var offensiveRe = regexp.MustCompile(`(?i)\b(fuck\w*|shit\w*|bitch\w*|asshole\w*)\b|kill yourself`)

type Validator struct {
	reg        *registry.Registry
	analyzer   *analysis.Analyzer
	weights    Weights
	thresholds Thresholds
}

type Option func(*Validator)

func WithWeights(w Weights) Option {
	return func(v *Validator) { v.weights = w }
}

func WithThresholds(t Thresholds) Option {
	return func(v *Validator) { v.thresholds = t }
}

func New(reg *registry.Registry, opts ...Option) *Validator {
	v := &Validator{
		reg:        reg,
		analyzer:   analysis.New(reg),
		weights:    DefaultWeights(),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks prompt against the rule catalogue. A nil res triggers
// an internal analysis pass. Errors block IsValid but never abort the
// caller; malformed prompts come back as low metrics plus populated
// error lists.
func (v *Validator) Validate(prompt, domain string, res *analysis.Result) Result {
	out := Result{IsValid: true, Errors: []Error{}, Warnings: []Warning{}, Suggestions: []Suggestion{}}

	if strings.TrimSpace(prompt) == "" {
		out.IsValid = false
		out.Errors = append(out.Errors, Error{
			Code:     "empty_prompt",
			Message:  "prompt is empty or whitespace only",
			Severity: SeverityCritical,
		})
		return out
	}

	if res == nil {
		quick := v.analyzer.Analyze(prompt)
		res = &quick
	}

	v.collectErrors(&out, prompt, *res)
	v.collectWarnings(&out, prompt, domain, *res)
	v.collectSuggestions(&out, prompt, *res)
	out.QualityMetrics = v.Metrics(prompt, *res)
	out.IsValid = len(out.Errors) == 0
	return out
}

func (v *Validator) collectErrors(out *Result, prompt string, res analysis.Result) {
	t := v.thresholds
	length := len(prompt)

	if length < t.MinLength {
		out.Errors = append(out.Errors, Error{
			Code:     "prompt_too_short",
			Message:  fmt.Sprintf("prompt is %d characters, minimum is %d", length, t.MinLength),
			Severity: SeverityHigh,
		})
	}
	if length > t.MaxLength {
		out.Errors = append(out.Errors, Error{
			Code:     "prompt_too_long",
			Message:  fmt.Sprintf("prompt is %d characters, maximum is %d", length, t.MaxLength),
			Severity: SeverityMedium,
		})
	}
	if offensiveRe.MatchString(prompt) {
		out.Errors = append(out.Errors, Error{
			Code:     "offensive_content",
			Message:  "prompt contains offensive language",
			Severity: SeverityCritical,
		})
	}
	if v.missingStructure(prompt, res) {
		out.Errors = append(out.Errors, Error{
			Code:     "missing_structure",
			Message:  "prompt lacks the minimal structure of an instruction",
			Severity: SeverityHigh,
		})
	}
	if res.AmbiguityScore > t.AmbiguityError {
		out.Errors = append(out.Errors, Error{
			Code:     "excessive_ambiguity",
			Message:  fmt.Sprintf("ambiguity %.2f exceeds the %.2f limit", res.AmbiguityScore, t.AmbiguityError),
			Severity: SeverityHigh,
		})
	}
	if res.Complexity < t.IncompleteComplexity && length < t.IncompleteLength {
		out.Errors = append(out.Errors, Error{
			Code:     "incomplete_prompt",
			Message:  "prompt looks like a fragment rather than a complete request",
			Severity: SeverityMedium,
		})
	}
	if length >= t.MinLength && !analysis.HasActionVerb(res.Tokens) && !analysis.HasConstraintLanguage(prompt) {
		out.Errors = append(out.Errors, Error{
			Code:     "missing_action",
			Message:  "prompt states neither an action nor a constraint",
			Severity: SeverityMedium,
		})
	}
}

func (v *Validator) missingStructure(prompt string, res analysis.Result) bool {
	if len(res.Tokens) < v.thresholds.MinTokens {
		return true
	}
	if !analysis.HasLetters(prompt) {
		return true
	}
	if !analysis.HasActionVerb(res.Tokens) && !v.hasDomainNoun(res.Tokens) &&
		len(res.Tokens) < v.thresholds.ShortTokens {
		return true
	}
	return false
}

func (v *Validator) hasDomainNoun(tokens []string) bool {
	if analysis.HasDeliverableLanguage(strings.Join(tokens, " ")) {
		return true
	}
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[strings.ToLower(tok)] = true
	}
	for _, name := range v.reg.Domains() {
		for _, kw := range v.reg.Pack(name).Keywords {
			if present[kw] {
				return true
			}
		}
	}
	return false
}

func (v *Validator) collectWarnings(out *Result, prompt, domain string, res analysis.Result) {
	t := v.thresholds

	if res.AmbiguityScore > t.AmbiguityWarn && res.AmbiguityScore <= t.AmbiguityError {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "high_ambiguity",
			Message:    fmt.Sprintf("ambiguity %.2f is high", res.AmbiguityScore),
			Suggestion: "name the exact subject and add measurable constraints",
		})
	}
	if res.ReadabilityScore < t.ReadabilityWarn {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "low_readability",
			Message:    fmt.Sprintf("readability %.2f is low", res.ReadabilityScore),
			Suggestion: "split long sentences and aim for 10-15 words per sentence",
		})
	}
	if res.Complexity > t.ComplexityWarn {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "high_complexity",
			Message:    fmt.Sprintf("complexity %.2f is high", res.Complexity),
			Suggestion: "split the request into sequential steps or separate prompts",
		})
	}
	if len(res.Tokens) < t.ShortTokens && res.AmbiguityScore > 0.5 && len(res.TechnicalTerms) == 0 {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "vague_short_prompt",
			Message:    "prompt is short, vague and carries no domain vocabulary",
			Suggestion: "state what to produce, for whom, and in what format",
		})
	}
	if code, msg, ok := v.domainGap(domain, res); ok {
		out.Warnings = append(out.Warnings, Warning{
			Code:       code,
			Message:    msg,
			Suggestion: "mention the concrete objects the domain works with",
		})
	}
	if res.Language != "" && res.Language != "en" && res.Language != "unknown" {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "mixed_language",
			Message:    fmt.Sprintf("prompt is not plain English (detected %q)", res.Language),
			Suggestion: "keep the prompt in one language for predictable refinement",
		})
	}
	if res.HasVariables {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "template_variables",
			Message:    "prompt contains template variable markers",
			Suggestion: "supply values for every marker or register the prompt as a template",
		})
	}
	if len(prompt) > t.WarnLength {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "length_excessive",
			Message:    fmt.Sprintf("prompt is %d characters; responses degrade past %d", len(prompt), t.WarnLength),
			Suggestion: "move background material into context and keep the ask short",
		})
	}
	if repeatedWordWarning(res.Tokens) {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "word_repetition",
			Message:    "the same words repeat throughout the prompt",
			Suggestion: "replace repeated nouns with a template variable or a pronoun",
		})
	}
	if v.inconsistentFormatting(prompt) {
		out.Warnings = append(out.Warnings, Warning{
			Code:       "inconsistent_formatting",
			Message:    "capitalization, spacing or punctuation is inconsistent",
			Suggestion: "use sentence case, single spaces and terminal punctuation",
		})
	}
}

// domainGap fires when a non-general domain prompt mentions none of the
// pack's expected vocabulary.
func (v *Validator) domainGap(domain string, res analysis.Result) (code, msg string, ok bool) {
	norm := strings.ToLower(strings.TrimSpace(domain))
	if norm == "" || norm == "general" || !v.reg.Has(norm) {
		return "", "", false
	}
	pack := v.reg.Pack(norm)
	if len(pack.ExpectedTerms) == 0 {
		return "", "", false
	}
	present := make(map[string]bool, len(res.Tokens))
	for _, tok := range res.Tokens {
		present[strings.ToLower(tok)] = true
	}
	for _, term := range pack.ExpectedTerms {
		if present[term] {
			return "", "", false
		}
	}
	return "missing_domain_context",
		fmt.Sprintf("%s prompt mentions none of: %s", norm, strings.Join(pack.ExpectedTerms, ", ")),
		true
}

// repeatedWordWarning fires on one word repeated three or more times, or
// two distinct words each repeated.
func repeatedWordWarning(tokens []string) bool {
	counts := analysis.RepeatedWords(tokens)
	if len(counts) >= 2 {
		return true
	}
	for _, n := range counts {
		if n >= 3 {
			return true
		}
	}
	return false
}

func (v *Validator) inconsistentFormatting(prompt string) bool {
	if analysis.HasMultiSpaceRuns(prompt) {
		return true
	}
	if !analysis.IsSentenceCase(prompt) {
		return true
	}
	if len(prompt) >= v.thresholds.IncompleteLength && !analysis.HasTerminalPunctuation(prompt) {
		return true
	}
	return false
}

func (v *Validator) collectSuggestions(out *Result, prompt string, res analysis.Result) {
	synonyms := v.reg.VagueSynonyms()
	for _, term := range analysis.VagueTerms(res.Tokens, synonyms) {
		out.Suggestions = append(out.Suggestions, Suggestion{
			Type:    "vague_term",
			Message: fmt.Sprintf("replace %q with something concrete", term),
			Before:  term,
			After:   synonyms[term],
		})
	}
	if !analysis.HasActionVerb(res.Tokens) {
		out.Suggestions = append(out.Suggestions, Suggestion{
			Type:    "action_verb",
			Message: "start with an action verb so the goal is unambiguous",
			After:   "Create, Summarize, Explain, ...",
		})
	}
	for word, n := range analysis.RepeatedWords(res.Tokens) {
		if n < 3 {
			continue
		}
		out.Suggestions = append(out.Suggestions, Suggestion{
			Type:    "template_variable",
			Message: fmt.Sprintf("%q repeats %d times; consider a template variable", word, n),
			Before:  word,
			After:   "{{" + word + "}}",
		})
	}
	if res.Complexity >= v.thresholds.FormatComplexity && !analysis.HasOutputSpec(prompt) {
		out.Suggestions = append(out.Suggestions, Suggestion{
			Type:    "output_format",
			Message: "complex requests benefit from an explicit output format",
			After:   "e.g. \"respond as a markdown table\"",
		})
	}
	if res.Complexity >= v.thresholds.ExamplesComplexity {
		out.Suggestions = append(out.Suggestions, Suggestion{
			Type:    "add_examples",
			Message: "add one or two input/output examples to anchor the expected result",
		})
	}
}
