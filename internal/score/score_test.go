package score

import (
	"math"
	"testing"

	"promptforge/internal/registry"
	"promptforge/internal/validate"
)

func testScorer() *Scorer {
	return New(registry.New())
}

func TestScoreBounds(t *testing.T) {
	s := testScorer()
	prompts := []string{
		"",
		"x",
		"make it nice",
		"Create a users table with a primary key and an index on email, limited to 10 columns.",
	}
	for _, raw := range prompts {
		for _, domain := range []string{"general", "sql", "unknown"} {
			out := s.Calculate(raw, domain, nil)
			for name, v := range map[string]float64{
				"clarity":      out.Clarity,
				"specificity":  out.Specificity,
				"structure":    out.Structure,
				"completeness": out.Completeness,
				"overall":      out.Overall,
			} {
				if v < 0 || v > 1 {
					t.Fatalf("%q/%s: %s out of bounds: %v", raw, domain, name, v)
				}
			}
		}
	}
}

func TestOverallMatchesWeightedSum(t *testing.T) {
	s := testScorer()
	reg := registry.New()
	raw := "Create a users table with a primary key constraint and an index on email."
	for _, domain := range []string{"general", "sql", "devops"} {
		out := s.Calculate(raw, domain, nil)
		p := reg.WeightProfile(domain)
		want := out.Clarity*p.Clarity + out.Specificity*p.Specificity +
			out.Structure*p.Structure + out.Completeness*p.Completeness
		if math.Abs(out.Overall-want) > 1e-9 {
			t.Fatalf("%s: overall %v != weighted sum %v", domain, out.Overall, want)
		}
	}
}

func TestDomainWeightsShiftOverall(t *testing.T) {
	s := testScorer()
	raw := "Create the users table with a primary key constraint and an index on email"
	out := s.Calculate(raw, "sql", nil)

	subscores := []float64{out.Clarity, out.Specificity, out.Structure, out.Completeness}
	spread := 0.0
	for _, a := range subscores {
		for _, b := range subscores {
			if d := math.Abs(a - b); d > spread {
				spread = d
			}
		}
	}
	if spread < 0.01 {
		t.Fatalf("fixture produced nearly equal subscores, cannot exercise weighting: %+v", out)
	}

	uniform := 0.25 * (out.Clarity + out.Specificity + out.Structure + out.Completeness)
	if math.Abs(out.Overall-uniform) < 1e-9 {
		t.Fatalf("sql profile should move overall away from the uniform aggregate")
	}
}

func TestKeywordGroupBonusRaisesCompleteness(t *testing.T) {
	s := testScorer()
	bare := s.Calculate("Create a report about recent signups now", "sql", nil)
	covered := s.Calculate("Create the schema with a table, an index and a select query now", "sql", nil)
	if covered.Completeness <= bare.Completeness {
		t.Fatalf("keyword coverage should raise completeness: %v <= %v",
			covered.Completeness, bare.Completeness)
	}
}

func TestCalculateDetailed(t *testing.T) {
	s := testScorer()
	val := validate.New(registry.New())
	raw := "Create a users table with a primary key constraint and an index on email."
	validation := val.Validate(raw, "sql", nil)

	out := s.CalculateDetailed(Context{
		Refined:    raw,
		Domain:     "sql",
		Validation: &validation,
	})

	if len(out.TopFactors) == 0 || len(out.TopFactors) > 8 {
		t.Fatalf("expected 1..8 top factors, got %d", len(out.TopFactors))
	}
	for i := 1; i < len(out.TopFactors); i++ {
		if out.TopFactors[i].Impact > out.TopFactors[i-1].Impact {
			t.Fatalf("top factors not sorted by impact: %+v", out.TopFactors)
		}
	}
	for _, f := range out.TopFactors {
		want := f.Weight * (1 - f.Score)
		if math.Abs(f.Impact-want) > 1e-9 {
			t.Fatalf("factor %s impact %v != weight*(1-score) %v", f.Key, f.Impact, want)
		}
	}
	if out.Confidence < 0.5 || out.Confidence > 1.0 {
		t.Fatalf("confidence out of bounds: %v", out.Confidence)
	}
	want := (1 - out.Score.Overall) * 0.5
	if math.Abs(out.ImprovementEstimate-want) > 1e-9 {
		t.Fatalf("improvement estimate %v != %v", out.ImprovementEstimate, want)
	}
	for _, dim := range []string{"clarity", "specificity", "structure", "completeness"} {
		if _, ok := out.Breakdown[dim]; !ok {
			t.Fatalf("breakdown missing dimension %s", dim)
		}
	}
}

func TestVagueFactorGating(t *testing.T) {
	s := testScorer()

	hasVague := func(out CalculationResult) bool {
		for _, f := range out.Breakdown["clarity"] {
			if f.Key == "vague_terms" {
				return true
			}
		}
		return false
	}

	clean := s.CalculateDetailed(Context{Refined: "Create a migration plan for the billing database.", Domain: "general"})
	if hasVague(clean) {
		t.Fatalf("vague_terms factor must be gated off for clean prompts")
	}
	vague := s.CalculateDetailed(Context{Refined: "Make something nice for the team.", Domain: "general"})
	if !hasVague(vague) {
		t.Fatalf("vague_terms factor must appear for vague prompts")
	}
}

func TestConfidenceReflectsEvidence(t *testing.T) {
	s := testScorer()
	raw := "Create a users table with a primary key constraint and an index on email."
	val := validate.New(registry.New())
	validation := val.Validate(raw, "sql", nil)
	quick := s.analyzer.Analyze(raw)

	full := s.CalculateDetailed(Context{Refined: raw, Domain: "sql", Analysis: &quick, Validation: &validation})
	bare := s.CalculateDetailed(Context{Refined: "tiny ask", Domain: "general"})

	if full.Confidence <= bare.Confidence {
		t.Fatalf("more evidence should raise confidence: %v <= %v", full.Confidence, bare.Confidence)
	}
	if bare.Confidence < 0.5 {
		t.Fatalf("confidence floor violated: %v", bare.Confidence)
	}
}
