package main

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func testGenerator(t *testing.T) *Generator {
	t.Helper()

	cfg := &Config{
		n1Min: 2,
		n1Max: 9,
		n2Min: 2,
		n2Max: 5,
	}

	return newGenerator(cfg, rand.New(rand.NewPCG(1, 2)))
}

func TestInstantiateResolvesAllPlaceholders(t *testing.T) {
	gen := testGenerator(t)

	for _, tmpl := range builtinTemplates() {
		for range 50 {
			problem, err := gen.Instantiate(tmpl)
			if err != nil {
				t.Fatalf("Instantiate(%q): %v", tmpl.Question, err)
			}

			for _, token := range []string{"NUM1", "NUM2"} {
				if strings.Contains(problem.Question, token) {
					t.Errorf("question %q still contains %s", problem.Question, token)
				}
				if strings.Contains(problem.Answer, token) {
					t.Errorf("answer %q still contains %s", problem.Answer, token)
				}
			}
		}
	}
}

func TestPowerRuleExactCoefficient(t *testing.T) {
	problem, err := instantiate(Template{
		Question: "\\int NUM1 x^{NUM2} dx",
		Formula:  "power_rule",
	}, 6, 2)
	if err != nil {
		t.Fatal(err)
	}

	if problem.Answer != "2*x^3" {
		t.Errorf("got answer %q, want %q", problem.Answer, "2*x^3")
	}
	if problem.Question != "\\int 6 x^{2} dx" {
		t.Errorf("got question %q, want %q", problem.Question, "\\int 6 x^{2} dx")
	}
}

func TestPowerRuleCoefficientRendering(t *testing.T) {
	// For every sampled pair, the coefficient n1/(n2+1) renders as a bare
	// integer when it divides evenly and as a 2-decimal value otherwise.
	for n1 := 2; n1 <= 9; n1++ {
		for n2 := 2; n2 <= 5; n2++ {
			problem, err := instantiate(Template{
				Question: "\\int NUM1 x^{NUM2} dx",
				Formula:  "power_rule",
			}, n1, n2)
			if err != nil {
				t.Fatal(err)
			}

			coeff, _, found := strings.Cut(problem.Answer, "*")
			if !found {
				t.Fatalf("malformed answer %q", problem.Answer)
			}

			p := n2 + 1
			if n1%p == 0 {
				if strings.Contains(coeff, ".") {
					t.Errorf("n1=%d n2=%d: exact coefficient rendered as %q", n1, n2, coeff)
				}
			} else {
				_, frac, ok := strings.Cut(coeff, ".")
				if !ok || len(frac) != 2 {
					t.Errorf("n1=%d n2=%d: inexact coefficient rendered as %q, want 2 decimals", n1, n2, coeff)
				}
			}
		}
	}
}

func TestCoefficient(t *testing.T) {
	cases := []struct {
		num, den int
		want     string
	}{
		{6, 3, "2"},
		{8, 4, "2"},
		{1, 1, "1"},
		{5, 3, "1.67"},
		{1, 2, "0.50"},
		{3, 2, "1.50"},
		{7, 6, "1.17"},
		{5, 2, "2.50"},
	}

	for _, c := range cases {
		if got := coefficient(c.num, c.den); got != c.want {
			t.Errorf("coefficient(%d, %d) = %q, want %q", c.num, c.den, got, c.want)
		}
	}
}

func TestFormulaTable(t *testing.T) {
	cases := []struct {
		formula string
		n1, n2  int
		want    string
	}{
		{"power_rule", 6, 2, "2*x^3"},
		{"power_rule", 5, 2, "1.67*x^3"},
		{"ln_rule", 4, 3, "4*log(x)"},
		{"exp_rule", 2, 3, "0.50*exp(2*x)"},
		{"sin_rule", 2, 4, "-0.50*cos(2*x)"},
		{"cos_rule", 4, 2, "0.25*sin(4*x)"},
		{"cos_rule", 1, 2, "1*sin(1*x)"},
		{"definite_rule", 6, 2, "3"},
		{"definite_rule", 5, 4, "2.50"},
	}

	for _, c := range cases {
		got, err := applyFormula(c.formula, c.n1, c.n2)
		if err != nil {
			t.Fatalf("%s(%d, %d): %v", c.formula, c.n1, c.n2, err)
		}
		if got != c.want {
			t.Errorf("%s(%d, %d) = %q, want %q", c.formula, c.n1, c.n2, got, c.want)
		}
	}
}

func TestMinusGlyphCanonicalization(t *testing.T) {
	problem, err := instantiate(Template{
		Question: "−NUM1 – x — y ‒ z",
		Answer:   "−NUM1*x",
	}, 3, 2)
	if err != nil {
		t.Fatal(err)
	}

	for _, glyph := range []string{"‒", "–", "—", "−"} {
		if strings.Contains(problem.Question, glyph) {
			t.Errorf("question %q contains unicode minus %U", problem.Question, []rune(glyph)[0])
		}
		if strings.Contains(problem.Answer, glyph) {
			t.Errorf("answer %q contains unicode minus %U", problem.Answer, []rune(glyph)[0])
		}
	}

	if problem.Answer != "-3*x" {
		t.Errorf("got answer %q, want %q", problem.Answer, "-3*x")
	}
}

func TestLiteralAnswerSubstitution(t *testing.T) {
	problem, err := instantiate(Template{
		Question: "\\int NUM1 dx",
		Answer:   "NUM1*x",
	}, 7, 2)
	if err != nil {
		t.Fatal(err)
	}

	if problem.Answer != "7*x" {
		t.Errorf("got answer %q, want %q", problem.Answer, "7*x")
	}
}

func TestRepeatedPlaceholderSubstitution(t *testing.T) {
	// A template may reference the same number twice; every occurrence is
	// replaced, not just the first.
	got := substitute("NUM1 + NUM1 + NUM2 + NUM2", 3, 5)
	if got != "3 + 3 + 5 + 5" {
		t.Errorf("got %q", got)
	}
}

func TestUnknownFormulaDegrades(t *testing.T) {
	problem, err := instantiate(Template{
		Question: "\\int NUM1 dx",
		Formula:  "quotient_rule",
	}, 4, 2)
	if err == nil {
		t.Fatal("expected an error for an unknown formula")
	}

	// The instance is still usable: question substituted, answer empty.
	if problem.Question != "\\int 4 dx" {
		t.Errorf("got question %q", problem.Question)
	}
	if problem.Answer != "" {
		t.Errorf("got answer %q, want empty", problem.Answer)
	}
}

func TestRollEmptyCatalog(t *testing.T) {
	gen := testGenerator(t)

	if _, err := gen.Roll(nil); err == nil {
		t.Fatal("expected an error for an empty catalog")
	}
}

func TestGeneratorRespectsBounds(t *testing.T) {
	cfg := &Config{
		n1Min: 3,
		n1Max: 4,
		n2Min: 2,
		n2Max: 2,
	}
	gen := newGenerator(cfg, rand.New(rand.NewPCG(7, 7)))

	for range 200 {
		problem, err := gen.Instantiate(Template{
			Question: "NUM1 NUM2",
		})
		if err != nil {
			t.Fatal(err)
		}

		fields := strings.Fields(problem.Question)
		if len(fields) != 2 {
			t.Fatalf("unexpected question %q", problem.Question)
		}
		if fields[0] != "3" && fields[0] != "4" {
			t.Errorf("n1 sampled outside bounds: %q", fields[0])
		}
		if fields[1] != "2" {
			t.Errorf("n2 sampled outside bounds: %q", fields[1])
		}
	}
}
