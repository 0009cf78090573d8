/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Problem is one concrete question/answer pair derived from a template for a
// single round. Answers use a fixed operator vocabulary (*, ^, parentheses,
// log, exp, sin, cos) so the client-side expression checker recognizes them.
type Problem struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

// minusGlyphs canonicalizes unicode dash variants to ASCII hyphen-minus, so
// downstream expression parsers only ever see one minus glyph.
var minusGlyphs = strings.NewReplacer(
	"‒", "-",
	"–", "-",
	"—", "-",
	"−", "-",
)

// Generator instantiates templates with uniformly sampled integer parameters.
// The bounds come from the config rather than being baked in.
type Generator struct {
	n1Min, n1Max int
	n2Min, n2Max int
	rand         *rand.Rand
}

// newGenerator builds a Generator from the configured sampling bounds. A nil
// source gets a fresh PCG; tests pass a seeded one.
func newGenerator(cfg *Config, r *rand.Rand) *Generator {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{
		n1Min: cfg.n1Min,
		n1Max: cfg.n1Max,
		n2Min: cfg.n2Min,
		n2Max: cfg.n2Max,
		rand:  r,
	}
}

// Roll selects a template at random and instantiates it.
func (g *Generator) Roll(catalog []Template) (Problem, error) {
	if len(catalog) == 0 {
		return Problem{}, errors.New("empty template catalog")
	}

	return g.Instantiate(catalog[g.rand.IntN(len(catalog))])
}

// Instantiate samples the template's parameters and derives the concrete
// question and answer strings.
//
// A malformed template (unknown formula name) still returns a usable Problem
// with an empty answer; the error is informational so callers can log it
// without ever failing a round. Nothing here raises.
func (g *Generator) Instantiate(t Template) (Problem, error) {
	n1 := g.n1Min + g.rand.IntN(g.n1Max-g.n1Min+1)
	n2 := g.n2Min + g.rand.IntN(g.n2Max-g.n2Min+1)

	return instantiate(t, n1, n2)
}

// instantiate is the deterministic core of Instantiate, split out so tests
// can pin the sampled values.
func instantiate(t Template, n1, n2 int) (Problem, error) {
	question := substitute(t.Question, n1, n2)

	var answer string
	var err error

	if t.Formula != "" {
		answer, err = applyFormula(t.Formula, n1, n2)
	} else {
		answer = substitute(t.Answer, n1, n2)
	}

	return Problem{
		Question: minusGlyphs.Replace(question),
		Answer:   minusGlyphs.Replace(answer),
	}, err
}

// substitute performs a global replace of both placeholder tokens; a template
// may reference the same number more than once.
func substitute(s string, n1, n2 int) string {
	s = strings.ReplaceAll(s, "NUM1", strconv.Itoa(n1))
	s = strings.ReplaceAll(s, "NUM2", strconv.Itoa(n2))

	return s
}

// applyFormula computes the expected answer for the named integration rule.
func applyFormula(name string, n1, n2 int) (string, error) {
	switch name {
	case "power_rule":
		// ∫ n1*x^n2 dx = (n1/(n2+1)) * x^(n2+1)
		p := n2 + 1
		return coefficient(n1, p) + "*x^" + strconv.Itoa(p), nil
	case "ln_rule":
		// ∫ n1/x dx = n1 * ln(x), sent as log(x)
		return strconv.Itoa(n1) + "*log(x)", nil
	case "exp_rule":
		// ∫ e^(n1*x) dx = (1/n1) * e^(n1*x)
		return coefficient(1, n1) + "*exp(" + strconv.Itoa(n1) + "*x)", nil
	case "sin_rule":
		// ∫ sin(n1*x) dx = -(1/n1) * cos(n1*x)
		return "-" + coefficient(1, n1) + "*cos(" + strconv.Itoa(n1) + "*x)", nil
	case "cos_rule":
		// ∫ cos(n1*x) dx = (1/n1) * sin(n1*x)
		return coefficient(1, n1) + "*sin(" + strconv.Itoa(n1) + "*x)", nil
	case "definite_rule":
		// ∫ from 0 to 1 of n1*x dx = n1/2
		return coefficient(n1, 2), nil
	default:
		return "", fmt.Errorf("unknown answer formula %q", name)
	}
}

// coefficient renders num/den as a bare integer when it divides evenly, and
// as a two-decimal value otherwise, so answers never read "1.00*x^3".
func coefficient(num, den int) string {
	if num%den == 0 {
		return strconv.Itoa(num / den)
	}

	rounded := math.Round(float64(num)/float64(den)*100) / 100

	return strconv.FormatFloat(rounded, 'f', 2, 64)
}
