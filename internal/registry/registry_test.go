package registry

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPackFallsBackToGeneral(t *testing.T) {
	r := New()
	p := r.Pack("no-such-domain")
	if p == nil {
		t.Fatalf("expected general pack, got nil")
	}
	if p.Name != "general" {
		t.Fatalf("expected general fallback, got %s", p.Name)
	}
	if r.Has("no-such-domain") {
		t.Fatalf("Has should be false for unknown domain")
	}
	if !r.Has("SQL") {
		t.Fatalf("Has should normalize case")
	}
}

func TestBuiltinWeightsSumToOne(t *testing.T) {
	r := New()
	for _, name := range r.Domains() {
		sum := r.WeightProfile(name).Sum()
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("pack %s weights sum to %.4f, want 1.0", name, sum)
		}
	}
}

func TestSQLWeightsNotUniform(t *testing.T) {
	r := New()
	w := r.WeightProfile("sql")
	if w == Uniform() {
		t.Fatalf("sql pack should carry a non-uniform weight profile")
	}
	if w.Specificity <= w.Completeness {
		t.Fatalf("sql profile should weight specificity above completeness, got %+v", w)
	}
}

func TestDetectHintsOrdersByMatches(t *testing.T) {
	r := New()
	hints := r.DetectHints([]string{"select", "table", "join", "deploy"})
	if len(hints) == 0 {
		t.Fatalf("expected at least one hint")
	}
	if hints[0] != "sql" {
		t.Fatalf("expected sql first, got %v", hints)
	}
	found := false
	for _, h := range hints {
		if h == "devops" {
			found = true
		}
		if h == "general" {
			t.Fatalf("general must never appear as a hint")
		}
	}
	if !found {
		t.Fatalf("expected devops among hints, got %v", hints)
	}
}

func TestRuleApplyCaseInsensitive(t *testing.T) {
	r := New()
	pack := r.Pack("sql")
	var fired bool
	text := "GET ME all users"
	for i := range pack.Rules {
		var ok bool
		text, ok = pack.Rules[i].Apply(text)
		fired = fired || ok
	}
	if !fired {
		t.Fatalf("expected at least one sql rule to fire")
	}
	if text == "GET ME all users" {
		t.Fatalf("rule application should rewrite the text")
	}
}

func TestVagueSynonymsIncludeSpanish(t *testing.T) {
	r := New()
	syn := r.VagueSynonyms()
	if syn["bonita"] == "" {
		t.Fatalf("expected a replacement for bonita")
	}
	if syn["nice"] == "" {
		t.Fatalf("expected a replacement for nice")
	}
}

func TestLoadDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	pack := `name: sql
description: replacement pack
weights:
  clarity: 0.4
  specificity: 0.3
  structure: 0.2
  completeness: 0.1
rules:
  - name: custom_rule
    pattern: '\bfoo\b'
    replacement: bar
keywords: [sql, foo]
`
	if err := os.WriteFile(filepath.Join(dir, "sql.yaml"), []byte(pack), 0o644); err != nil {
		t.Fatalf("write pack: %v", err)
	}
	r := New()
	n, err := r.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pack loaded, got %d", n)
	}
	if got := r.Pack("sql").Description; got != "replacement pack" {
		t.Fatalf("expected override to win, got description %q", got)
	}
	if w := r.WeightProfile("sql"); w.Clarity != 0.4 {
		t.Fatalf("expected overridden weights, got %+v", w)
	}
}

func TestLoadDirMissingIsNotError(t *testing.T) {
	r := New()
	n, err := r.LoadDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 packs, got %d", n)
	}
}

func TestLoadFileRejectsBadPack(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		body string
	}{
		{"bad_weights", "name: custom\nweights:\n  clarity: 0.9\n  specificity: 0.9\n  structure: 0.1\n  completeness: 0.1\n"},
		{"bad_name", "name: 'Not Valid'\n"},
		{"bad_pattern", "name: custom\nrules:\n  - name: broken\n    pattern: '(['\n    replacement: x\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".yaml")
		if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		r := New()
		if err := r.LoadFile(path); err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
	}
}
