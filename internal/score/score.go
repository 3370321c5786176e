// Package score aggregates quality metrics into one domain-weighted,
// explainable score over the refined prompt.
package score

import (
	"fmt"
	"sort"
	"strings"

	"promptforge/internal/analysis"
	"promptforge/internal/registry"
	"promptforge/internal/validate"
)

// QualityScore carries the four weighted dimensions and their
// aggregation. overall = sum(subscore * weight) for the active profile.
type QualityScore struct {
	Clarity      float64 `json:"clarity"`
	Specificity  float64 `json:"specificity"`
	Structure    float64 `json:"structure"`
	Completeness float64 `json:"completeness"`
	Overall      float64 `json:"overall"`
}

// Factor is one weighted score component. Impact = weight * (1 - score),
// so the heaviest unmet factor ranks first.
type Factor struct {
	Key         string  `json:"key"`
	Label       string  `json:"label"`
	Dimension   string  `json:"dimension"`
	Score       float64 `json:"score"`
	Weight      float64 `json:"weight"`
	Impact      float64 `json:"impact"`
	Explanation string  `json:"explanation"`
}

// CalculationResult is the detailed, explainable form of a score.
type CalculationResult struct {
	Score               QualityScore        `json:"score"`
	Breakdown           map[string][]Factor `json:"breakdown"`
	ImprovementEstimate float64             `json:"improvementEstimate"`
	Confidence          float64             `json:"confidence"`
	TopFactors          []Factor            `json:"topFactors"`
}

// Context bundles everything the detailed calculation can draw on. Only
// Refined is required.
type Context struct {
	Refined    string
	Domain     string
	Analysis   *analysis.Result
	Validation *validate.Result
}

const (
	topFactorLimit    = 8
	keywordGroupBonus = 0.05
)

type Scorer struct {
	reg      *registry.Registry
	analyzer *analysis.Analyzer
	val      *validate.Validator
	weights  validate.Weights
}

func New(reg *registry.Registry) *Scorer {
	return &Scorer{
		reg:      reg,
		analyzer: analysis.New(reg),
		val:      validate.New(reg),
		weights:  validate.DefaultWeights(),
	}
}

// Calculate scores the refined prompt under the domain's weight profile.
// A nil res triggers an internal analysis pass.
func (s *Scorer) Calculate(refined, domain string, res *analysis.Result) QualityScore {
	if res == nil {
		quick := s.analyzer.Analyze(refined)
		res = &quick
	}
	metrics := s.val.Metrics(refined, *res)
	completeness := clamp01(metrics.Completeness + s.keywordGroupScore(domain, res.Tokens))

	profile := s.reg.WeightProfile(domain)
	out := QualityScore{
		Clarity:      metrics.Clarity,
		Specificity:  metrics.Specificity,
		Structure:    metrics.Structure,
		Completeness: completeness,
	}
	out.Overall = out.Clarity*profile.Clarity +
		out.Specificity*profile.Specificity +
		out.Structure*profile.Structure +
		out.Completeness*profile.Completeness
	return out
}

// CalculateDetailed adds the factor breakdown, top-impact ranking,
// improvement estimate and confidence.
func (s *Scorer) CalculateDetailed(ctx Context) CalculationResult {
	res := ctx.Analysis
	if res == nil {
		quick := s.analyzer.Analyze(ctx.Refined)
		res = &quick
	}
	score := s.Calculate(ctx.Refined, ctx.Domain, res)

	breakdown := map[string][]Factor{
		"clarity":      s.clarityFactors(ctx.Refined, *res),
		"specificity":  s.specificityFactors(ctx.Refined, *res),
		"structure":    s.structureFactors(ctx.Refined, *res),
		"completeness": s.completenessFactors(ctx.Refined, ctx.Domain, *res),
	}

	var all []Factor
	for _, factors := range breakdown {
		all = append(all, factors...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Impact != all[j].Impact {
			return all[i].Impact > all[j].Impact
		}
		return all[i].Key < all[j].Key
	})
	if len(all) > topFactorLimit {
		all = all[:topFactorLimit]
	}

	return CalculationResult{
		Score:               score,
		Breakdown:           breakdown,
		ImprovementEstimate: (1 - score.Overall) * 0.5,
		Confidence:          s.confidence(ctx, *res),
		TopFactors:          all,
	}
}

// keywordGroupScore grants the domain completeness bonus per matched
// keyword group.
func (s *Scorer) keywordGroupScore(domain string, tokens []string) float64 {
	groups := s.reg.Pack(domain).KeywordGroups
	return keywordGroupBonus * float64(matchedGroups(groups, tokens))
}

func matchedGroups(groups [][]string, tokens []string) int {
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[strings.ToLower(tok)] = true
	}
	matched := 0
	for _, group := range groups {
		for _, term := range group {
			if present[term] {
				matched++
				break
			}
		}
	}
	return matched
}

// confidence models evidentiary support for the score, not the score
// itself. Bounded to [0.5, 1.0].
func (s *Scorer) confidence(ctx Context, res analysis.Result) float64 {
	c := 0.8
	if ctx.Analysis != nil {
		c += 0.1
	}
	if len(res.TechnicalTerms) > 0 {
		c += 0.05
	}
	if len(res.DomainHints) > 0 {
		c += 0.05
	}
	if ctx.Validation != nil {
		c += 0.1
		if len(ctx.Validation.Errors) == 0 {
			c += 0.05
		}
	}
	if n := len(ctx.Refined); n < 20 || n > 1000 {
		c -= 0.1
	}
	if c < 0.5 {
		return 0.5
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

func factor(key, label, dimension string, weight, score float64, explanation string) Factor {
	return Factor{
		Key:         key,
		Label:       label,
		Dimension:   dimension,
		Score:       clamp01(score),
		Weight:      weight,
		Impact:      weight * (1 - clamp01(score)),
		Explanation: explanation,
	}
}

// clarityFactors lists only the terms that moved the clarity score.
func (s *Scorer) clarityFactors(refined string, res analysis.Result) []Factor {
	w := s.weights
	var out []Factor
	if res.AmbiguityScore > 0 {
		out = append(out, factor("ambiguity", "Ambiguity", "clarity",
			w.ClarityAmbiguity, 1-res.AmbiguityScore,
			fmt.Sprintf("ambiguity measured at %.2f", res.AmbiguityScore)))
	}
	if res.ReadabilityScore < 1 {
		out = append(out, factor("readability", "Readability", "clarity",
			w.ClarityReadability, res.ReadabilityScore,
			fmt.Sprintf("readability measured at %.2f", res.ReadabilityScore)))
	}
	vague := analysis.VagueTerms(res.Tokens, s.reg.VagueSynonyms())
	if len(vague) > 0 {
		ratio := float64(len(vague)) / float64(maxInt(1, len(res.Tokens)))
		out = append(out, factor("vague_terms", "Vague wording", "clarity",
			w.ClarityVagueness, 1-minFloat(1, 4*ratio),
			fmt.Sprintf("vague terms present: %s", strings.Join(vague, ", "))))
	}
	return out
}

func (s *Scorer) specificityFactors(refined string, res analysis.Result) []Factor {
	w := s.weights
	var out []Factor

	density := 0.0
	if n := len(res.Tokens); n > 0 {
		density = float64(len(res.TechnicalTerms)) / float64(n)
	}
	out = append(out, factor("technical_terms", "Technical vocabulary", "specificity",
		w.SpecificityTechMax, minFloat(1, w.SpecificityTechScale*density/w.SpecificityTechMax),
		fmt.Sprintf("%d technical terms found", len(res.TechnicalTerms))))

	out = append(out, binaryFactor("specific_details", "Concrete details", "specificity",
		w.SpecificityDetails, analysis.HasSpecificDetails(refined),
		"numbers, quotes or markers anchor the request",
		"no numbers, quotes or markers anchor the request"))

	out = append(out, binaryFactor("constraints", "Constraints", "specificity",
		w.SpecificityConstraints, analysis.HasConstraintLanguage(refined),
		"limits and bounds are stated",
		"no limits or bounds are stated"))

	if analysis.HasGenericLanguage(refined) {
		out = append(out, factor("generic_language", "Generic wording", "specificity",
			w.SpecificityGeneric, 0, "filler such as \"etc\" weakens the request"))
	}
	if len(res.DomainHints) > 0 {
		out = append(out, factor("domain_alignment", "Domain alignment", "specificity",
			3*w.SpecificityPerHint, minFloat(1, float64(len(res.DomainHints))/3),
			fmt.Sprintf("domain signals: %s", strings.Join(res.DomainHints, ", "))))
	}
	return out
}

func (s *Scorer) structureFactors(refined string, res analysis.Result) []Factor {
	w := s.weights
	var out []Factor
	if res.ReadabilityScore < 0.5 {
		out = append(out, factor("readability_drag", "Readability drag", "structure",
			w.StructureReadability, res.ReadabilityScore,
			"hard-to-read phrasing weakens structure"))
	}
	out = append(out, binaryFactor("sentence_form", "Sentence form", "structure",
		w.StructureSentence,
		analysis.IsSentenceCase(refined) && analysis.HasTerminalPunctuation(refined),
		"reads as a complete sentence",
		"missing sentence case or terminal punctuation"))
	out = append(out, binaryFactor("connectives", "Logical flow", "structure",
		w.StructureConnectives, analysis.HasLogicalConnectives(refined),
		"steps are ordered with connectives",
		"no ordering words such as \"then\" or \"first\""))
	out = append(out, factor("length_shape", "Length", "structure",
		w.StructureLength, validate.TriangularLength(len(refined)),
		fmt.Sprintf("%d characters", len(refined))))
	if analysis.LongestSentenceWords(refined) > validate.DefaultThresholds().RunOnWords {
		out = append(out, factor("run_on", "Run-on sentence", "structure",
			w.StructureRunOn, 0, "a sentence exceeds the run-on limit"))
	}
	return out
}

func (s *Scorer) completenessFactors(refined, domain string, res analysis.Result) []Factor {
	w := s.weights
	var out []Factor
	if analysis.IsUserStoryShape(refined) {
		out = append(out, factor("user_story", "User story", "completeness",
			w.CompletenessUserStory, 1, "follows the as-a / i-want / so-that shape"))
		return out
	}
	out = append(out, binaryFactor("action_verb", "Action verb", "completeness",
		w.CompletenessVerb, analysis.HasActionVerb(res.Tokens),
		"the expected action is explicit",
		"no action verb states what to do"))
	out = append(out, binaryFactor("context", "Context", "completeness",
		w.CompletenessContext, analysis.HasAdequateContext(refined),
		"enough framing to act without guessing",
		"not enough framing to act without guessing"))
	out = append(out, binaryFactor("constraints_stated", "Constraints", "completeness",
		w.CompletenessConstraints, analysis.HasConstraintLanguage(refined),
		"bounds are stated", "no bounds are stated"))
	out = append(out, binaryFactor("output_spec", "Output spec", "completeness",
		w.CompletenessOutput, analysis.HasOutputSpec(refined),
		"the output shape is named", "the output shape is not named"))

	if groups := s.reg.Pack(domain).KeywordGroups; len(groups) > 0 && domain != "" && domain != "general" {
		matched := matchedGroups(groups, res.Tokens)
		out = append(out, factor("domain_keywords", "Domain keywords", "completeness",
			keywordGroupBonus*float64(len(groups)), float64(matched)/float64(len(groups)),
			fmt.Sprintf("%d of %d keyword groups covered", matched, len(groups))))
	}
	return out
}

func binaryFactor(key, label, dimension string, weight float64, ok bool, yes, no string) Factor {
	score, explanation := 0.0, no
	if ok {
		score, explanation = 1.0, yes
	}
	return factor(key, label, dimension, weight, score, explanation)
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

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
