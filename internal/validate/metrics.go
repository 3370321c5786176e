package validate

import (
	"strings"

	"promptforge/internal/analysis"
)

// Weights holds every coefficient of the quality-metric formulas so each
// constant is independently tunable and testable.
type Weights struct {
	ClarityAmbiguity   float64
	ClarityReadability float64
	ClarityVagueness   float64

	SpecificityBase        float64
	SpecificityShortBase   float64
	SpecificityTechMax     float64
	SpecificityTechScale   float64
	SpecificityDetails     float64
	SpecificityConstraints float64
	SpecificityGeneric     float64
	SpecificityPerHint     float64

	StructureBase        float64
	StructureReadability float64
	StructureSentence    float64
	StructureConnectives float64
	StructurePunctuation float64
	StructureLength      float64
	StructureRunOn       float64

	CompletenessFragment    float64
	CompletenessUserStory   float64
	CompletenessBase        float64
	CompletenessVerb        float64
	CompletenessContext     float64
	CompletenessConstraints float64
	CompletenessOutput      float64

	ConsistencyMixedLanguage float64
	ConsistencyTerminology   float64
	ConsistencyConflicts     float64

	ActionabilityBase        float64
	ActionabilityVerb        float64
	ActionabilityDeliverable float64
	ActionabilityMeasurable  float64
	ActionabilityAbstract    float64
}

func DefaultWeights() Weights {
	return Weights{
		ClarityAmbiguity:   0.8,
		ClarityReadability: 0.3,
		ClarityVagueness:   0.4,

		SpecificityBase:        0.5,
		SpecificityShortBase:   0.2,
		SpecificityTechMax:     0.3,
		SpecificityTechScale:   1.5,
		SpecificityDetails:     0.2,
		SpecificityConstraints: 0.2,
		SpecificityGeneric:     0.3,
		SpecificityPerHint:     0.1,

		StructureBase:        0.7,
		StructureReadability: 0.4,
		StructureSentence:    0.2,
		StructureConnectives: 0.2,
		StructurePunctuation: 0.1,
		StructureLength:      0.1,
		StructureRunOn:       0.2,

		CompletenessFragment:    0.2,
		CompletenessUserStory:   0.8,
		CompletenessBase:        0.3,
		CompletenessVerb:        0.3,
		CompletenessContext:     0.2,
		CompletenessConstraints: 0.1,
		CompletenessOutput:      0.1,

		ConsistencyMixedLanguage: 0.3,
		ConsistencyTerminology:   0.2,
		ConsistencyConflicts:     0.4,

		ActionabilityBase:        0.2,
		ActionabilityVerb:        0.4,
		ActionabilityDeliverable: 0.2,
		ActionabilityMeasurable:  0.1,
		ActionabilityAbstract:    0.3,
	}
}

var terminologyPairs = [][2]string{
	{"db", "database"},
	{"config", "configuration"},
	{"app", "application"},
	{"repo", "repository"},
	{"k8s", "kubernetes"},
	{"doc", "document"},
}

var conflictPairs = [][2]string{
	{"short", "detailed"},
	{"brief", "comprehensive"},
	{"simple", "advanced"},
	{"formal", "casual"},
	{"concise", "thorough"},
	{"minimal", "exhaustive"},
}

// Metrics evaluates all six dimensions for a prompt. Each formula sums
// its terms first and clamps exactly once at the end. The scorer reuses
// this engine on the refined text.
func (v *Validator) Metrics(prompt string, res analysis.Result) Metrics {
	return Metrics{
		Clarity:       v.clarity(res),
		Specificity:   v.specificity(prompt, res),
		Structure:     v.structure(prompt, res),
		Completeness:  v.completeness(prompt, res),
		Consistency:   v.consistency(res),
		Actionability: v.actionability(prompt, res),
	}
}

func (v *Validator) clarity(res analysis.Result) float64 {
	w := v.weights
	vagueRatio := 0.0
	if n := len(res.Tokens); n > 0 {
		vagueRatio = float64(len(analysis.VagueTerms(res.Tokens, v.reg.VagueSynonyms()))) / float64(n)
	}
	score := 1 -
		w.ClarityAmbiguity*res.AmbiguityScore -
		w.ClarityReadability*(1-res.ReadabilityScore) -
		w.ClarityVagueness*vagueRatio
	return clamp01(score)
}

func (v *Validator) specificity(prompt string, res analysis.Result) float64 {
	w := v.weights
	score := w.SpecificityBase
	if v.shortAndUnspecific(prompt, res) {
		score = w.SpecificityShortBase
	}
	if n := len(res.Tokens); n > 0 {
		density := float64(len(res.TechnicalTerms)) / float64(n)
		score += minFloat(w.SpecificityTechMax, w.SpecificityTechScale*density)
	}
	if analysis.HasSpecificDetails(prompt) {
		score += w.SpecificityDetails
	}
	if analysis.HasConstraintLanguage(prompt) {
		score += w.SpecificityConstraints
	}
	if analysis.HasGenericLanguage(prompt) {
		score -= w.SpecificityGeneric
	}
	score += w.SpecificityPerHint * float64(len(res.DomainHints))
	return clamp01(score)
}

func (v *Validator) shortAndUnspecific(prompt string, res analysis.Result) bool {
	return len(prompt) < v.thresholds.IncompleteLength &&
		!analysis.HasSpecificDetails(prompt) &&
		len(res.TechnicalTerms) == 0
}

func (v *Validator) structure(prompt string, res analysis.Result) float64 {
	w := v.weights
	score := w.StructureBase
	if res.ReadabilityScore < 0.5 {
		score -= w.StructureReadability * (1 - res.ReadabilityScore)
	}
	if analysis.IsSentenceCase(prompt) && analysis.HasTerminalPunctuation(prompt) {
		score += w.StructureSentence
	}
	if analysis.HasLogicalConnectives(prompt) {
		score += w.StructureConnectives
	}
	if strings.ContainsAny(prompt, ",;:-") {
		score += w.StructurePunctuation
	}
	score += w.StructureLength * TriangularLength(len(prompt))
	if analysis.LongestSentenceWords(prompt) > v.thresholds.RunOnWords {
		score -= w.StructureRunOn
	}
	return clamp01(score)
}

// TriangularLength peaks for prompts between 100 and 300 characters,
// ramping up from zero and decaying to zero again at 1000.
func TriangularLength(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < 100:
		return float64(n) / 100
	case n <= 300:
		return 1
	case n < 1000:
		return float64(1000-n) / 700
	default:
		return 0
	}
}

func (v *Validator) completeness(prompt string, res analysis.Result) float64 {
	w, t := v.weights, v.thresholds
	if res.Complexity < t.IncompleteComplexity && len(prompt) < t.IncompleteLength {
		return w.CompletenessFragment
	}
	if analysis.IsUserStoryShape(prompt) {
		return w.CompletenessUserStory
	}
	score := w.CompletenessBase
	if analysis.HasActionVerb(res.Tokens) {
		score += w.CompletenessVerb
	}
	if analysis.HasAdequateContext(prompt) {
		score += w.CompletenessContext
	}
	if analysis.HasConstraintLanguage(prompt) {
		score += w.CompletenessConstraints
	}
	if analysis.HasOutputSpec(prompt) {
		score += w.CompletenessOutput
	}
	return clamp01(score)
}

func (v *Validator) consistency(res analysis.Result) float64 {
	w := v.weights
	score := 1.0
	if res.Language == "mixed" {
		score -= w.ConsistencyMixedLanguage
	}
	if hasBothOf(res.Tokens, terminologyPairs) {
		score -= w.ConsistencyTerminology
	}
	if hasBothOf(res.Tokens, conflictPairs) {
		score -= w.ConsistencyConflicts
	}
	return clamp01(score)
}

func (v *Validator) actionability(prompt string, res analysis.Result) float64 {
	w := v.weights
	score := w.ActionabilityBase
	if analysis.HasActionVerb(res.Tokens) {
		score += w.ActionabilityVerb
	}
	if analysis.HasDeliverableLanguage(prompt) {
		score += w.ActionabilityDeliverable
	}
	if analysis.HasMeasurableOutcome(prompt) {
		score += w.ActionabilityMeasurable
	}
	if analysis.IsOverlyAbstract(prompt) {
		score -= w.ActionabilityAbstract
	}
	return clamp01(score)
}

func hasBothOf(tokens []string, pairs [][2]string) bool {
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[strings.ToLower(tok)] = true
	}
	for _, pair := range pairs {
		if present[pair[0]] && present[pair[1]] {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
