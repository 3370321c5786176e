package refine

import (
	"strings"
	"testing"

	"promptforge/internal/analysis"
	"promptforge/internal/registry"
)

func testRefiner() *Refiner {
	return New(registry.New())
}

func testAnalysis(complexity float64) analysis.Result {
	return analysis.Result{
		Complexity: complexity,
		Intent:     analysis.Intent{Category: "create", Confidence: 0.9},
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestApplyDomainRulesSQL(t *testing.T) {
	r := testRefiner()
	out := r.ApplyDomainRules("get me all active users from the accounts table", "sql", nil)
	if !strings.HasPrefix(out.Refined, "SQL task: ") {
		t.Fatalf("expected domain prefix, got %q", out.Refined)
	}
	if !strings.Contains(out.Refined, "select all active users") {
		t.Fatalf("expected get-me rewrite, got %q", out.Refined)
	}
	if !contains(out.RulesApplied, "sql_get_to_select") {
		t.Fatalf("expected sql_get_to_select in %v", out.RulesApplied)
	}
	if !contains(out.RulesApplied, "domain_prefix") {
		t.Fatalf("expected domain_prefix in %v", out.RulesApplied)
	}
}

func TestApplyDomainRulesIsDeterministic(t *testing.T) {
	r := testRefiner()
	first := r.ApplyDomainRules("make a table for customer orders", "sql", nil)
	second := r.ApplyDomainRules("make a table for customer orders", "sql", nil)
	if first.Refined != second.Refined {
		t.Fatalf("refinement must be deterministic: %q vs %q", first.Refined, second.Refined)
	}
}

func TestOptimizeCleansAndAppendsTone(t *testing.T) {
	r := testRefiner()
	out := r.Optimize("make   it nice", "professional", nil)
	if strings.Contains(out.Refined, "  ") {
		t.Fatalf("expected collapsed whitespace, got %q", out.Refined)
	}
	if strings.Contains(strings.ToLower(out.Refined), "nice") {
		t.Fatalf("expected vague term replaced, got %q", out.Refined)
	}
	if !strings.HasSuffix(out.Refined, "Use a professional, precise tone.") {
		t.Fatalf("expected tone directive, got %q", out.Refined)
	}
	if out.Refined[0] != 'M' {
		t.Fatalf("expected capitalized start, got %q", out.Refined)
	}
	for _, step := range []string{"whitespace_normalized", "vague_replacement:nice", "sentence_case", "tone_professional"} {
		if !contains(out.RulesApplied, step) {
			t.Fatalf("expected %s in %v", step, out.RulesApplied)
		}
	}
}

func TestOptimizeLeavesCleanTextAlone(t *testing.T) {
	r := testRefiner()
	out := r.Optimize("Create a report.", "", nil)
	if out.Refined != "Create a report." {
		t.Fatalf("clean text should pass through, got %q", out.Refined)
	}
	if len(out.RulesApplied) != 0 {
		t.Fatalf("expected no steps, got %v", out.RulesApplied)
	}
}

func TestNormalizeShortPrompt(t *testing.T) {
	r := testRefiner()
	out := r.Normalize("create table", "sql")
	if !strings.HasPrefix(out.Refined, "SQL task: Create table") {
		t.Fatalf("expected prefix and capitalization, got %q", out.Refined)
	}
	if !strings.Contains(out.Refined, "Include the expected output format") {
		t.Fatalf("expected specificity nudge, got %q", out.Refined)
	}
	for _, step := range []string{"sentence_case", "domain_prefix", "specificity_nudge"} {
		if !contains(out.RulesApplied, step) {
			t.Fatalf("expected %s in %v", step, out.RulesApplied)
		}
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	r := testRefiner()
	out := r.Normalize("", "general")
	if out.Refined != "" {
		t.Fatalf("empty stays empty, got %q", out.Refined)
	}
	if len(out.RulesApplied) != 0 {
		t.Fatalf("expected no steps, got %v", out.RulesApplied)
	}
}

func TestGenerateTemplateFromRepeatedNouns(t *testing.T) {
	r := testRefiner()
	text := "Write the user guide for the user portal where the user resets a password"
	tpl := r.GenerateTemplate(text, nil, "general")
	if !strings.Contains(tpl.Prompt, "{{user}}") {
		t.Fatalf("expected {{user}} marker, got %q", tpl.Prompt)
	}
	if !contains(tpl.Variables, "user") {
		t.Fatalf("expected user variable, got %v", tpl.Variables)
	}
	if tpl.Type != "derived" {
		t.Fatalf("expected derived type, got %s", tpl.Type)
	}
}

func TestGenerateTemplateWithCallerVariables(t *testing.T) {
	r := testRefiner()
	tpl := r.GenerateTemplate("Summarize the report", map[string]string{"audience": "executives"}, "general")
	if !strings.Contains(tpl.Prompt, "{{audience}}") {
		t.Fatalf("expected audience placeholder appended, got %q", tpl.Prompt)
	}
	if tpl.Type != "parameterized" {
		t.Fatalf("expected parameterized type, got %s", tpl.Type)
	}
	if !contains(tpl.Variables, "audience") {
		t.Fatalf("expected audience in %v", tpl.Variables)
	}
}

func TestGenerateTemplateKeepsExistingMarkers(t *testing.T) {
	r := testRefiner()
	tpl := r.GenerateTemplate("Summarize {{article}} briefly", map[string]string{"article": "x"}, "general")
	if strings.Contains(tpl.Prompt, "Variables:") {
		t.Fatalf("existing marker must not be re-appended, got %q", tpl.Prompt)
	}
	if !contains(tpl.Variables, "article") {
		t.Fatalf("expected article in %v", tpl.Variables)
	}
}

func TestGenerateSystemPrompt(t *testing.T) {
	r := testRefiner()
	res := testAnalysis(0.8)
	sys := r.GenerateSystemPrompt("sql", &res, "migrating a legacy schema")
	if !strings.Contains(sys, "database engineer") {
		t.Fatalf("expected sql system prompt, got %q", sys)
	}
	if !strings.Contains(sys, "step by step") {
		t.Fatalf("expected complexity guidance, got %q", sys)
	}
	if !strings.Contains(sys, "Context: migrating a legacy schema") {
		t.Fatalf("expected context sentence, got %q", sys)
	}
}

func TestGenerateExamplesCapped(t *testing.T) {
	r := testRefiner()
	examples := r.GenerateExamples("anything", "sql", nil)
	if len(examples) == 0 || len(examples) > 2 {
		t.Fatalf("expected 1..2 examples, got %d", len(examples))
	}
	if examples[0].Input == "" || examples[0].Output == "" {
		t.Fatalf("examples must carry input and output: %+v", examples[0])
	}
}
