package games

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

type TimesTableQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   int    `json:"answer"`
	Options  []int  `json:"options"`
}

type Puzzle struct {
	ID          string `json:"id"`
	Target      int    `json:"target"`
	Numbers     []int  `json:"numbers"`
	Description string `json:"description"`
}

type FractionQuestion struct {
	ID        string   `json:"id"`
	Fraction1 string   `json:"fraction1"`
	Fraction2 string   `json:"fraction2"`
	Answer    string   `json:"answer"`
	Options   []string `json:"options"`
}

type level struct {
	count, maxA, maxB, spread int
}

var levels = map[string]level{
	"easy":   {count: 10, maxA: 5, maxB: 10, spread: 5},
	"medium": {count: 15, maxA: 10, maxB: 12, spread: 8},
	"hard":   {count: 20, maxA: 12, maxB: 15, spread: 10},
}

// Generator produces question sets. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator uses r when non-nil, which makes output reproducible in tests.
func NewGenerator(r *rand.Rand) *Generator {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rnd: r}
}

// between returns an int in [lo, hi]. Callers hold g.mu.
func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.IntN(hi-lo+1)
}

// TimesTable falls back to the hard level for unknown difficulties.
func (g *Generator) TimesTable(difficulty string) []TimesTableQuestion {
	lv, ok := levels[difficulty]
	if !ok {
		lv = levels["hard"]
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]TimesTableQuestion, 0, lv.count)
	for i := 0; i < lv.count; i++ {
		a, b := g.between(1, lv.maxA), g.between(1, lv.maxB)
		ans := a * b
		out = append(out, TimesTableQuestion{
			ID:       fmt.Sprintf("q%d", i+1),
			Question: fmt.Sprintf("%d × %d = ?", a, b),
			Answer:   ans,
			Options:  g.options(ans, lv.spread),
		})
	}
	return out
}

// options returns the answer plus three distinct non-negative distractors, shuffled.
func (g *Generator) options(ans, spread int) []int {
	seen := map[int]bool{ans: true}
	opts := []int{ans}
	for len(opts) < 4 {
		d := ans + g.between(-spread, spread)
		if d < 0 || seen[d] {
			continue
		}
		seen[d] = true
		opts = append(opts, d)
	}
	g.rnd.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	return opts
}

func (g *Generator) MathPuzzles() []Puzzle {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Puzzle, 0, 5)
	for i := 0; i < 5; i++ {
		target := g.between(20, 100)
		nums := make([]int, 4)
		strs := make([]string, 4)
		for j := range nums {
			nums[j] = g.between(1, 9)
			strs[j] = fmt.Sprint(nums[j])
		}
		out = append(out, Puzzle{
			ID:          fmt.Sprintf("puzzle%d", i+1),
			Target:      target,
			Numbers:     nums,
			Description: fmt.Sprintf("Use these numbers to reach %d: %s", target, strings.Join(strs, ", ")),
		})
	}
	return out
}

func (g *Generator) Fractions() []FractionQuestion {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]FractionQuestion, 0, 10)
	for i := 0; i < 10; i++ {
		n1, d1 := g.between(1, 9), g.between(2, 10)
		n2, d2 := g.between(1, 9), g.between(2, 10)
		out = append(out, FractionQuestion{
			ID:        fmt.Sprintf("frac%d", i+1),
			Fraction1: fmt.Sprintf("%d/%d", n1, d1),
			Fraction2: fmt.Sprintf("%d/%d", n2, d2),
			Answer:    compareFractions(n1, d1, n2, d2),
			Options:   []string{">", "<", "="},
		})
	}
	return out
}

// compareFractions cross-multiplies so equal fractions compare exactly.
func compareFractions(n1, d1, n2, d2 int) string {
	l, r := n1*d2, n2*d1
	switch {
	case l > r:
		return ">"
	case l < r:
		return "<"
	default:
		return "="
	}
}
