package analysis

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	tokenRe    = regexp.MustCompile(`[\p{L}\p{N}_']+`)
	sentenceRe = regexp.MustCompile(`[.!?]+\s+|[.!?]+$|\n+`)
	variableRe = regexp.MustCompile(`\{\{\s*\w+\s*\}\}|\{\w+\}|<[a-zA-Z_]\w*>`)
	numberRe   = regexp.MustCompile(`\d`)
	quoteRe    = regexp.MustCompile(`"[^"]+"|'[^']+'`)
	spaceRunRe = regexp.MustCompile(`[^\S\n]{2,}`)
)

var actionVerbs = map[string]string{
	"create": "create", "generate": "create", "write": "create", "build": "create",
	"make": "create", "design": "create", "develop": "create", "draft": "create",
	"implement": "create", "compose": "create", "produce": "create", "add": "create",
	"explain": "explain", "describe": "explain", "clarify": "explain", "document": "explain",
	"summarize": "summarize", "condense": "summarize", "shorten": "summarize",
	"translate": "transform", "convert": "transform", "refactor": "transform",
	"rewrite": "transform", "transform": "transform", "optimize": "transform",
	"fix": "fix", "debug": "fix", "repair": "fix", "correct": "fix",
	"analyze": "analyze", "compare": "analyze", "evaluate": "analyze",
	"review": "analyze", "rank": "analyze", "classify": "analyze", "assess": "analyze",
	"plan": "plan", "outline": "plan", "organize": "plan",
	"list": "retrieve", "find": "retrieve", "extract": "retrieve", "select": "retrieve",
	"show": "retrieve", "get": "retrieve", "fetch": "retrieve", "query": "retrieve",
	"delete": "modify", "update": "modify", "insert": "modify", "remove": "modify",
	"deploy": "operate", "provision": "operate", "configure": "operate", "monitor": "operate",
}

var constraintMarkers = []string{
	"must", "should", "at most", "at least", "no more than", "fewer than",
	"less than", "under ", "within", "limit", "only", "exactly", "between",
	"maximum", "minimum", "max ", "min ", "required", "up to",
}

var genericMarkers = []string{
	"etc", "and so on", "whatever", "anything", "everything", "somehow",
	"in general", "or something", "all kinds", "various things",
}

var deliverableMarkers = []string{
	"table", "list", "report", "document", "code", "query", "script",
	"diagram", "summary", "email", "plan", "schema", "json", "csv",
	"markdown", "bullet", "spreadsheet", "function", "template", "outline",
}

var measurableMarkers = []string{
	"kpi", "metric", "percent", "%", "target", "threshold", "benchmark",
	"p99", "latency", "deadline", "by when",
}

var abstractMarkers = []string{
	"synergy", "holistic", "innovative", "world-class", "cutting-edge",
	"revolutionary", "next-level", "seamless", "paradigm", "game-changing",
	"best in class", "state of the art",
}

var connectiveMarkers = []string{
	"then", "after", "before", "first", "second", "third", "finally",
	"because", "so that", "in order to", "therefore", "step", "once",
}

var outputSpecMarkers = []string{
	"format", "json", "csv", "markdown", "table", "bullet", "output",
	"respond with", "return", "as a list", "in the form",
}

var contextMarkers = []string{
	"context", "given", "based on", "targeting", "audience", "background",
	"assume", "using the", "for the following",
}

var enStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "for": true, "with": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"as": true, "at": true, "by": true, "from": true, "i": true, "you": true,
	"we": true, "they": true, "my": true, "your": true, "our": true, "its": true,
	"me": true, "us": true, "them": true, "he": true, "she": true, "his": true,
	"her": true, "will": true, "would": true, "can": true, "could": true,
	"do": true, "does": true, "not": true, "no": true, "all": true, "some": true,
	"any": true, "have": true, "has": true, "had": true, "there": true,
	"what": true, "which": true, "who": true, "how": true, "when": true,
	"where": true, "please": true, "want": true, "need": true, "like": true,
}

var esStopwords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true, "un": true, "una": true,
	"unos": true, "unas": true, "y": true, "o": true, "de": true, "del": true,
	"en": true, "por": true, "para": true, "con": true, "que": true, "es": true,
	"son": true, "mi": true, "tu": true, "su": true, "lo": true, "al": true,
	"hazme": true, "haz": true, "dame": true, "quiero": true, "necesito": true,
	"como": true, "donde": true, "cuando": true, "muy": true, "mas": true,
	"esta": true, "este": true, "estos": true, "estas": true, "sobre": true,
}

// Tokenize splits text into word tokens, preserving original case.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(text, -1)
}

// Sentences splits text on terminal punctuation and newlines, dropping
// empty segments.
func Sentences(text string) []string {
	parts := sentenceRe.Split(strings.TrimSpace(text), -1)
	var out []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return out
}

// ActionVerb returns the first recognized action verb in tokens and its
// intent category.
func ActionVerb(tokens []string) (verb, category string, ok bool) {
	for _, tok := range tokens {
		low := strings.ToLower(tok)
		if cat, found := actionVerbs[low]; found {
			return low, cat, true
		}
	}
	return "", "", false
}

func HasActionVerb(tokens []string) bool {
	_, _, ok := ActionVerb(tokens)
	return ok
}

func HasConstraintLanguage(text string) bool {
	return containsAny(strings.ToLower(text), constraintMarkers)
}

func HasGenericLanguage(text string) bool {
	return containsAny(strings.ToLower(text), genericMarkers)
}

func HasDeliverableLanguage(text string) bool {
	return containsAny(strings.ToLower(text), deliverableMarkers)
}

func HasMeasurableOutcome(text string) bool {
	low := strings.ToLower(text)
	return numberRe.MatchString(low) && containsAny(low, measurableMarkers)
}

func IsOverlyAbstract(text string) bool {
	return containsAny(strings.ToLower(text), abstractMarkers)
}

func HasLogicalConnectives(text string) bool {
	return containsAny(strings.ToLower(text), connectiveMarkers)
}

func HasOutputSpec(text string) bool {
	return containsAny(strings.ToLower(text), outputSpecMarkers)
}

// HasAdequateContext reports whether the prompt carries enough framing
// for a collaborator to act without guessing.
func HasAdequateContext(text string) bool {
	if len(text) >= 80 {
		return true
	}
	return containsAny(strings.ToLower(text), contextMarkers)
}

// HasSpecificDetails reports concrete anchors: numbers, quoted strings,
// or variable markers.
func HasSpecificDetails(text string) bool {
	return numberRe.MatchString(text) || quoteRe.MatchString(text) || variableRe.MatchString(text)
}

func HasVariableMarkers(text string) bool {
	return variableRe.MatchString(text)
}

// VariableMarkers returns the distinct template markers in order of first
// appearance.
func VariableMarkers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range variableRe.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// IsUserStoryShape matches the "as a X I want Y so that Z" convention.
func IsUserStoryShape(text string) bool {
	low := strings.ToLower(text)
	return strings.Contains(low, "as a ") &&
		(strings.Contains(low, "i want") || strings.Contains(low, "i need")) &&
		strings.Contains(low, "so that")
}

func IsStopword(word string) bool {
	low := strings.ToLower(word)
	return enStopwords[low] || esStopwords[low]
}

// RepeatedWords counts occurrences of meaningful words: longer than three
// characters and outside the stopword tables. Short function words repeat
// naturally and are excluded to keep the redundancy signal useful.
func RepeatedWords(tokens []string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokens {
		low := strings.ToLower(tok)
		if len(low) < 4 || IsStopword(low) {
			continue
		}
		counts[low]++
	}
	for word, n := range counts {
		if n < 2 {
			delete(counts, word)
		}
	}
	return counts
}

// VagueTerms returns the distinct tokens present in the synonym table, in
// order of first appearance.
func VagueTerms(tokens []string, synonyms map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range tokens {
		low := strings.ToLower(tok)
		if _, ok := synonyms[low]; ok && !seen[low] {
			seen[low] = true
			out = append(out, low)
		}
	}
	return out
}

// DetectLanguage classifies by stopword hits: en, es, mixed, or unknown.
func DetectLanguage(tokens []string) string {
	var en, es int
	for _, tok := range tokens {
		low := strings.ToLower(tok)
		if enStopwords[low] {
			en++
		}
		if esStopwords[low] {
			es++
		}
	}
	switch {
	case en > 0 && es > 0:
		return "mixed"
	case es > 0:
		return "es"
	case en > 0:
		return "en"
	default:
		return "unknown"
	}
}

// HasTerminalPunctuation reports whether the text ends a sentence.
func HasTerminalPunctuation(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', ';', ':':
		return true
	}
	return false
}

// HasMultiSpaceRuns reports interior runs of two or more spaces.
func HasMultiSpaceRuns(text string) bool {
	return spaceRunRe.MatchString(text)
}

// IsSentenceCase reports whether the first letter is upper case and the
// text is not shouting.
func IsSentenceCase(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	first := []rune(trimmed)[0]
	if unicode.IsLetter(first) && !unicode.IsUpper(first) {
		return false
	}
	letters, uppers := 0, 0
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters == 0 {
		return false
	}
	return float64(uppers)/float64(letters) < 0.6
}

// LongestSentenceWords returns the word count of the longest sentence.
func LongestSentenceWords(text string) int {
	longest := 0
	for _, s := range Sentences(text) {
		if n := len(Tokenize(s)); n > longest {
			longest = n
		}
	}
	return longest
}

func HasLetters(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func containsAny(low string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
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
