// Package analysis provides the heuristic prompt analyzer. It never
// calls a model; every signal is computed from the text itself so the
// pipeline behaves identically online and offline.
package analysis

import (
	"strings"
	"unicode"

	"promptforge/internal/registry"
)

type Intent struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Result is the fixed shape consumed by the validator, scorer and
// orchestrator. All score-like fields stay within [0,1].
type Result struct {
	Tokens           []string `json:"tokens"`
	Entities         []string `json:"entities"`
	Intent           Intent   `json:"intent"`
	Complexity       float64  `json:"complexity"`
	AmbiguityScore   float64  `json:"ambiguityScore"`
	ReadabilityScore float64  `json:"readabilityScore"`
	DomainHints      []string `json:"domainHints"`
	TechnicalTerms   []string `json:"technicalTerms"`
	HasVariables     bool     `json:"hasVariables"`
	Language         string   `json:"language"`
	EstimatedTokens  int      `json:"estimatedTokens"`
}

type Analyzer struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Analyzer {
	return &Analyzer{reg: reg}
}

// Analyze inspects raw and returns the full analysis. It is pure: the
// same input always yields the same result and raw is never mutated.
func (a *Analyzer) Analyze(raw string) Result {
	tokens := Tokenize(raw)
	sentences := Sentences(raw)
	technical := a.technicalTerms(tokens)
	vague := VagueTerms(tokens, a.reg.VagueSynonyms())
	hints := a.reg.DetectHints(tokens)
	entities := extractEntities(raw)

	res := Result{
		Tokens:          tokens,
		Entities:        entities,
		Intent:          detectIntent(tokens),
		DomainHints:     hints,
		TechnicalTerms:  technical,
		HasVariables:    HasVariableMarkers(raw),
		Language:        DetectLanguage(tokens),
		EstimatedTokens: (len(raw) + 3) / 4,
	}
	res.Complexity = complexity(raw, tokens, sentences, technical, res.HasVariables)
	res.AmbiguityScore = ambiguity(raw, tokens, entities, technical, vague)
	res.ReadabilityScore = readability(raw, tokens, sentences)
	return res
}

func (a *Analyzer) technicalTerms(tokens []string) []string {
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[strings.ToLower(tok)] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, name := range a.reg.Domains() {
		pack := a.reg.Pack(name)
		for _, term := range pack.TechnicalTerms {
			low := strings.ToLower(term)
			if present[low] && !seen[low] {
				seen[low] = true
				out = append(out, low)
			}
		}
	}
	return out
}

func detectIntent(tokens []string) Intent {
	verb, category, ok := ActionVerb(tokens)
	if !ok {
		return Intent{Category: "general", Confidence: 0.3}
	}
	confidence := 0.65
	if len(tokens) > 0 && strings.EqualFold(tokens[0], verb) {
		confidence = 0.9
	}
	return Intent{Category: category, Confidence: confidence}
}

// complexity grows with length, jargon density, multi-sentence structure
// and template variables.
func complexity(raw string, tokens, sentences, technical []string, hasVars bool) float64 {
	if len(tokens) == 0 {
		return 0
	}
	score := 0.1
	score += 0.4 * minFloat(1, float64(len(tokens))/60)
	density := float64(len(technical)) / float64(len(tokens))
	score += minFloat(0.3, 2*density)
	if len(sentences) > 1 {
		score += 0.1
	}
	if HasLogicalConnectives(raw) {
		score += 0.05
	}
	if hasVars {
		score += 0.05
	}
	return clamp01(score)
}

// ambiguity rises with vague wording and bare pronoun references, and
// falls when the prompt anchors itself with constraints.
func ambiguity(raw string, tokens, entities, technical, vague []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	score := 0.15
	score += minFloat(0.5, 0.12*float64(len(vague)))
	if len(tokens) < 5 {
		score += 0.15
	}
	if !HasSpecificDetails(raw) && len(technical) == 0 {
		score += 0.1
	}
	if barePronoun(tokens) && len(entities) == 0 {
		score += 0.1
	}
	if HasConstraintLanguage(raw) {
		score -= 0.15
	}
	return clamp01(score)
}

func barePronoun(tokens []string) bool {
	for _, tok := range tokens {
		switch strings.ToLower(tok) {
		case "it", "this", "that", "something":
			return true
		}
	}
	return false
}

// readability peaks near a twelve-word average sentence and is penalized
// for run-ons.
func readability(raw string, tokens, sentences []string) float64 {
	count := len(sentences)
	if count == 0 {
		count = 1
	}
	avg := float64(len(tokens)) / float64(count)
	score := 1 - absFloat(avg-12)/20
	if HasTerminalPunctuation(raw) {
		score += 0.1
	}
	if LongestSentenceWords(raw) > 25 {
		score -= 0.15
	}
	return clamp01(score)
}

// extractEntities collects quoted phrases and capitalized words that do
// not open a sentence.
func extractEntities(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.Trim(s, `"'`)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, q := range quoteRe.FindAllString(raw, -1) {
		add(q)
	}
	for _, sentence := range Sentences(raw) {
		words := Tokenize(sentence)
		for i, word := range words {
			if i == 0 {
				continue
			}
			r := []rune(word)[0]
			if unicode.IsUpper(r) && len(word) > 1 && !IsStopword(word) {
				add(word)
			}
		}
	}
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
