// Package refine rewrites raw prompts: domain substitution rules, tone
// and formatting optimization, template extraction and system-prompt
// generation. Everything here is deterministic text work.
package refine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"promptforge/internal/analysis"
	"promptforge/internal/registry"
)

// Result is the outcome of the domain-rule stage.
type Result struct {
	Refined      string   `json:"refined"`
	RulesApplied []string `json:"rulesApplied"`
}

// Template is a parameterized form of a prompt.
type Template struct {
	Prompt    string   `json:"prompt"`
	Variables []string `json:"variables"`
	Type      string   `json:"type"`
}

var spaceRe = regexp.MustCompile(`[^\S\n]+`)

var toneDirectives = map[string]string{
	"professional": "Use a professional, precise tone.",
	"casual":       "Keep the tone casual and approachable.",
	"technical":    "Use precise technical language.",
	"friendly":     "Keep the tone warm and friendly.",
}

type Refiner struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Refiner {
	return &Refiner{reg: reg}
}

// ApplyDomainRules runs the domain's substitution table over raw and
// injects the domain prefix. The applied rule names are reported in
// order.
func (r *Refiner) ApplyDomainRules(raw, domain string, res *analysis.Result) Result {
	pack := r.reg.Pack(domain)
	out := Result{Refined: raw, RulesApplied: []string{}}
	for i := range pack.Rules {
		var fired bool
		out.Refined, fired = pack.Rules[i].Apply(out.Refined)
		if fired {
			out.RulesApplied = append(out.RulesApplied, pack.Rules[i].Name)
		}
	}
	if pack.PromptPrefix != "" && !hasPrefixFold(out.Refined, pack.PromptPrefix) {
		out.Refined = pack.PromptPrefix + out.Refined
		out.RulesApplied = append(out.RulesApplied, "domain_prefix")
	}
	return out
}

// Optimize cleans whitespace and casing, replaces vague wording from the
// synonym table, and appends the tone directive. Steps are reported like
// rule names.
func (r *Refiner) Optimize(text, tone string, res *analysis.Result) Result {
	out := Result{Refined: text, RulesApplied: []string{}}

	if collapsed := collapseSpaces(out.Refined); collapsed != out.Refined {
		out.Refined = collapsed
		out.RulesApplied = append(out.RulesApplied, "whitespace_normalized")
	}
	if replaced, terms := r.replaceVague(out.Refined); len(terms) > 0 {
		out.Refined = replaced
		for _, term := range terms {
			out.RulesApplied = append(out.RulesApplied, "vague_replacement:"+term)
		}
	}
	if capitalized := capitalize(out.Refined); capitalized != out.Refined {
		out.Refined = capitalized
		out.RulesApplied = append(out.RulesApplied, "sentence_case")
	}
	if !analysis.HasTerminalPunctuation(out.Refined) && analysis.HasLetters(out.Refined) {
		out.Refined += "."
		out.RulesApplied = append(out.RulesApplied, "terminal_punctuation")
	}
	if directive, ok := toneDirectives[strings.ToLower(strings.TrimSpace(tone))]; ok {
		if !strings.Contains(out.Refined, directive) {
			out.Refined = strings.TrimSpace(out.Refined) + " " + directive
			out.RulesApplied = append(out.RulesApplied, "tone_"+strings.ToLower(tone))
		}
	}
	return out
}

// Normalize is the dependency-free fast path used when the service runs
// disconnected: capitalization, domain prefix, punctuation and a
// specificity nudge for very short prompts.
func (r *Refiner) Normalize(raw, domain string) Result {
	out := Result{Refined: collapseSpaces(strings.TrimSpace(raw)), RulesApplied: []string{}}
	if out.Refined != strings.TrimSpace(raw) {
		out.RulesApplied = append(out.RulesApplied, "whitespace_normalized")
	}
	if capitalized := capitalize(out.Refined); capitalized != out.Refined {
		out.Refined = capitalized
		out.RulesApplied = append(out.RulesApplied, "sentence_case")
	}
	pack := r.reg.Pack(domain)
	if pack.PromptPrefix != "" && !hasPrefixFold(out.Refined, pack.PromptPrefix) {
		out.Refined = pack.PromptPrefix + out.Refined
		out.RulesApplied = append(out.RulesApplied, "domain_prefix")
	}
	if !analysis.HasTerminalPunctuation(out.Refined) && analysis.HasLetters(out.Refined) {
		out.Refined += "."
		out.RulesApplied = append(out.RulesApplied, "terminal_punctuation")
	}
	if len(raw) > 0 && len(raw) < 25 {
		out.Refined += " Include the expected output format and any constraints."
		out.RulesApplied = append(out.RulesApplied, "specificity_nudge")
	}
	return out
}

// GenerateTemplate parameterizes text: nouns repeated three or more
// times become {{variable}} markers and caller-supplied variables are
// appended when the text does not already use them.
func (r *Refiner) GenerateTemplate(text string, vars map[string]string, domain string) Template {
	prompt := text
	seen := make(map[string]bool)
	var variables []string

	repeated := analysis.RepeatedWords(analysis.Tokenize(text))
	var words []string
	for word, n := range repeated {
		if n >= 3 {
			words = append(words, word)
		}
	}
	sort.Strings(words)
	for _, word := range words {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		prompt = re.ReplaceAllString(prompt, "{{"+word+"}}")
		seen[word] = true
		variables = append(variables, word)
	}

	for _, marker := range analysis.VariableMarkers(text) {
		name := strings.Trim(marker, "{}<> ")
		if !seen[name] {
			seen[name] = true
			variables = append(variables, name)
		}
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var missing []string
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			variables = append(variables, key)
			missing = append(missing, "{{"+key+"}}")
		}
	}
	if len(missing) > 0 {
		prompt = strings.TrimSpace(prompt) + "\nVariables: " + strings.Join(missing, ", ")
	}

	kind := "derived"
	if len(vars) > 0 {
		kind = "parameterized"
	}
	return Template{Prompt: prompt, Variables: variables, Type: kind}
}

// GenerateSystemPrompt composes the domain's system prompt with the
// caller context and complexity guidance.
func (r *Refiner) GenerateSystemPrompt(domain string, res *analysis.Result, context string) string {
	pack := r.reg.Pack(domain)
	parts := []string{pack.SystemPrompt}
	if res != nil && res.Complexity > 0.7 {
		parts = append(parts, "The request is complex; reason through it step by step before answering.")
	}
	if res != nil && res.Intent.Category != "" && res.Intent.Category != "general" {
		parts = append(parts, fmt.Sprintf("The user's intent is to %s.", res.Intent.Category))
	}
	if strings.TrimSpace(context) != "" {
		parts = append(parts, "Context: "+strings.TrimSpace(context))
	}
	return strings.Join(parts, " ")
}

// GenerateExamples returns up to two pack examples for the domain.
func (r *Refiner) GenerateExamples(text, domain string, res *analysis.Result) []registry.Example {
	examples := r.reg.Pack(domain).Examples
	if len(examples) > 2 {
		examples = examples[:2]
	}
	out := make([]registry.Example, len(examples))
	copy(out, examples)
	return out
}

func (r *Refiner) replaceVague(text string) (string, []string) {
	synonyms := r.reg.VagueSynonyms()
	terms := analysis.VagueTerms(analysis.Tokenize(text), synonyms)
	if len(terms) == 0 {
		return text, nil
	}
	out := text
	for _, term := range terms {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		out = re.ReplaceAllString(out, synonyms[term])
	}
	return out, terms
}

func collapseSpaces(text string) string {
	return spaceRe.ReplaceAllString(text, " ")
}

func capitalize(text string) string {
	for i, r := range text {
		if unicode.IsLetter(r) {
			if unicode.IsUpper(r) {
				return text
			}
			return text[:i] + string(unicode.ToUpper(r)) + text[i+len(string(r)):]
		}
		if !unicode.IsSpace(r) {
			return text
		}
	}
	return text
}

func hasPrefixFold(text, prefix string) bool {
	if len(text) < len(prefix) {
		return false
	}
	return strings.EqualFold(text[:len(prefix)], prefix)
}
