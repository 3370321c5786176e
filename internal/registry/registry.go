package registry

import (
	"regexp"
	"sort"
	"strings"
)

// WeightProfile holds the per-dimension scoring weights for a domain.
// Weights must sum to 1.0; Uniform() is the fallback profile.
type WeightProfile struct {
	Clarity      float64 `yaml:"clarity" json:"clarity"`
	Specificity  float64 `yaml:"specificity" json:"specificity"`
	Structure    float64 `yaml:"structure" json:"structure"`
	Completeness float64 `yaml:"completeness" json:"completeness"`
}

func Uniform() WeightProfile {
	return WeightProfile{Clarity: 0.25, Specificity: 0.25, Structure: 0.25, Completeness: 0.25}
}

func (w WeightProfile) Sum() float64 {
	return w.Clarity + w.Specificity + w.Structure + w.Completeness
}

// Rule is one substitution in a domain's rewrite table.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`

	re *regexp.Regexp
}

// Apply rewrites text when the rule matches and reports whether it fired.
func (r *Rule) Apply(text string) (string, bool) {
	if r.re == nil {
		return text, false
	}
	if !r.re.MatchString(text) {
		return text, false
	}
	return r.re.ReplaceAllString(text, r.Replacement), true
}

type Example struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
	Note   string `yaml:"note,omitempty" json:"note,omitempty"`
}

// DomainPack bundles everything the pipeline knows about one domain:
// rewrite rules, scoring weights, expected vocabulary, and templates.
type DomainPack struct {
	Name           string        `yaml:"name" json:"name"`
	Description    string        `yaml:"description" json:"description"`
	PromptPrefix   string        `yaml:"prompt_prefix" json:"prompt_prefix"`
	SystemPrompt   string        `yaml:"system_prompt" json:"system_prompt"`
	Weights        WeightProfile `yaml:"weights" json:"weights"`
	Rules          []Rule        `yaml:"rules" json:"rules"`
	Keywords       []string      `yaml:"keywords" json:"keywords"`
	ExpectedTerms  []string      `yaml:"expected_terms" json:"expected_terms"`
	KeywordGroups  [][]string    `yaml:"keyword_groups" json:"keyword_groups"`
	TechnicalTerms []string      `yaml:"technical_terms" json:"technical_terms"`
	Examples       []Example     `yaml:"examples" json:"examples"`
}

func (p *DomainPack) compile() error {
	for i := range p.Rules {
		re, err := regexp.Compile("(?i)" + p.Rules[i].Pattern)
		if err != nil {
			return err
		}
		p.Rules[i].re = re
	}
	return nil
}

// Registry is the open set of domain packs. Built-in packs cover the six
// stock domains; LoadDir extends or overrides them from YAML files.
type Registry struct {
	packs         map[string]*DomainPack
	vagueSynonyms map[string]string
}

func New() *Registry {
	r := &Registry{
		packs:         make(map[string]*DomainPack),
		vagueSynonyms: defaultVagueSynonyms(),
	}
	for _, pack := range defaultPacks() {
		p := pack
		if err := p.compile(); err != nil {
			// Built-in patterns are fixed at compile time; a bad one is a
			// programming error, not a runtime condition.
			panic("registry: invalid built-in rule pattern: " + err.Error())
		}
		r.packs[p.Name] = &p
	}
	return r
}

// Pack returns the pack for domain, falling back to general for unknown
// names so callers never deal with a nil pack.
func (r *Registry) Pack(domain string) *DomainPack {
	if p, ok := r.packs[normalize(domain)]; ok {
		return p
	}
	return r.packs["general"]
}

func (r *Registry) Has(domain string) bool {
	_, ok := r.packs[normalize(domain)]
	return ok
}

// WeightProfile returns the scoring weights for domain; unknown domains
// get the uniform profile.
func (r *Registry) WeightProfile(domain string) WeightProfile {
	if p, ok := r.packs[normalize(domain)]; ok && p.Weights.Sum() > 0 {
		return p.Weights
	}
	return Uniform()
}

func (r *Registry) Domains() []string {
	names := make([]string, 0, len(r.packs))
	for name := range r.packs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VagueSynonyms is the cross-domain vague-term replacement table used by
// the validator's suggestion generator and the refiner.
func (r *Registry) VagueSynonyms() map[string]string {
	return r.vagueSynonyms
}

// DetectHints returns the domains whose keyword lists match the tokens,
// ordered by match count descending.
func (r *Registry) DetectHints(tokens []string) []string {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[strings.ToLower(tok)] = true
	}
	type hit struct {
		name  string
		count int
	}
	var hits []hit
	for name, pack := range r.packs {
		if name == "general" {
			continue
		}
		count := 0
		for _, kw := range pack.Keywords {
			if set[kw] {
				count++
			}
		}
		if count > 0 {
			hits = append(hits, hit{name: name, count: count})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].name < hits[j].name
	})
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

func (r *Registry) add(pack *DomainPack) error {
	if err := pack.compile(); err != nil {
		return err
	}
	r.packs[normalize(pack.Name)] = pack
	return nil
}

func normalize(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
