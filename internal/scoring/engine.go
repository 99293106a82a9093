package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	FeedbackCorrect        = "correct"
	FeedbackExcellent      = "excellent"
	FeedbackPartialShort   = "good but could be more detailed"
	FeedbackAllChecked     = "all correct options checked"
	FeedbackInvalidNumeric = "invalid numeric value"
	FeedbackInvalidFormat  = "invalid answer format"
	FeedbackNotAnswered    = "not answered"
)

// Entry is the grading detail for one question.
type Entry struct {
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
	StudentAnswer any     `json:"student_answer"`
	CorrectAnswer any     `json:"correct_answer"`
}

// Breakdown maps question ID to its Entry. It is recomputed on every grading
// run and never persisted on its own.
type Breakdown map[string]Entry

// IDs returns the graded question IDs in lexical order.
func (b Breakdown) IDs() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Engine options

type Option func(*config)

type config struct {
	UnansweredEntries bool // emit zero entries for schema questions with no answer
	KeywordPercent    int  // share of keywords needed for short-answer partial credit
}

func WithUnansweredEntries(b bool) Option { return func(c *config) { c.UnansweredEntries = b } }
func WithKeywordPercent(p int) Option     { return func(c *config) { c.KeywordPercent = p } }

// Engine grades submissions against an answer schema. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg config
}

func NewEngine(opts ...Option) *Engine {
	cfg := config{KeywordPercent: 70}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.KeywordPercent <= 0 || cfg.KeywordPercent > 100 {
		cfg.KeywordPercent = 70
	}
	return &Engine{cfg: cfg}
}

var defaultEngine = NewEngine()

// ScoreSubmission grades answers with the default engine.
func ScoreSubmission(answers map[string]any, schema Schema) (float64, Breakdown) {
	return defaultEngine.Score(answers, schema)
}

// Score grades every answer whose question ID appears in schema and returns
// the summed score plus the per-question breakdown. Answers for unknown
// question IDs are ignored. Questions without an answer contribute nothing and,
// unless WithUnansweredEntries is set, get no breakdown entry.
//
// Questions are visited in lexical ID order so the float sum is reproducible.
func (e *Engine) Score(answers map[string]any, schema Schema) (float64, Breakdown) {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		if _, ok := schema[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	total := 0.0
	out := make(Breakdown, len(ids))
	for _, id := range ids {
		ent := e.grade(schema[id], answers[id])
		out[id] = ent
		total += ent.Score
	}

	if e.cfg.UnansweredEntries {
		for id, q := range schema {
			if _, ok := answers[id]; ok {
				continue
			}
			out[id] = Entry{Feedback: FeedbackNotAnswered, CorrectAnswer: q.Correct()}
		}
	}
	return total, out
}

func (e *Engine) grade(q Question, answer any) Entry {
	var score float64
	var fb string
	switch v := q.(type) {
	case MCQ:
		score, fb = gradeMCQ(v, answer)
	case Numeric:
		score, fb = gradeNumeric(v, answer)
	case Short:
		score, fb = e.gradeShort(v, answer)
	case Checkbox:
		score, fb = gradeCheckbox(v, answer)
	default:
		panic(fmt.Sprintf("scoring: unexpected question %T", q))
	}
	return Entry{Score: score, Feedback: fb, StudentAnswer: answer, CorrectAnswer: q.Correct()}
}

// --- per-type rules ---

func gradeMCQ(q MCQ, answer any) (float64, string) {
	got, ok := scalarKey(answer)
	want, _ := scalarKey(q.Answer)
	if ok && got == want {
		return 1, FeedbackCorrect
	}
	return 0, wrongAnswer(q.Answer)
}

func gradeNumeric(q Numeric, answer any) (float64, string) {
	v, ok := parseNumber(answer)
	if !ok {
		return 0, FeedbackInvalidNumeric
	}
	if math.Abs(v-q.Answer) <= q.Tolerance {
		return 1, FeedbackCorrect
	}
	return 0, wrongAnswer(q.Answer)
}

func (e *Engine) gradeShort(q Short, answer any) (float64, string) {
	s, ok := answer.(string)
	if !ok {
		return 0, FeedbackInvalidFormat
	}
	got := strings.ToLower(strings.TrimSpace(s))
	if got == strings.ToLower(strings.TrimSpace(q.Answer)) {
		return 1, FeedbackExcellent
	}
	if len(q.Keywords) == 0 {
		return 0, wrongAnswer(q.Answer)
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(got) {
		words[w] = struct{}{}
	}
	hits := 0
	for _, k := range q.Keywords {
		if _, ok := words[strings.ToLower(k)]; ok {
			hits++
		}
	}
	// hits/len >= pct/100, kept in integers so 7 of 10 meets 70%.
	if hits*100 >= len(q.Keywords)*e.cfg.KeywordPercent {
		return 0.8, FeedbackPartialShort
	}
	return 0, "wrong, keywords are: " + strings.Join(q.Keywords, ", ")
}

func gradeCheckbox(q Checkbox, answer any) (float64, string) {
	list, ok := answer.([]any)
	if !ok {
		if ss, isStrings := answer.([]string); isStrings {
			list = make([]any, len(ss))
			for i, s := range ss {
				list[i] = s
			}
		} else {
			return 0, FeedbackInvalidFormat
		}
	}
	resp, ok := toSet(list)
	if !ok {
		return 0, FeedbackInvalidFormat
	}
	correct, _ := toSet(q.Answer)

	if setEqual(correct, resp) {
		return 1, FeedbackAllChecked
	}
	hits, wrong := 0, 0
	for k := range resp {
		if _, ok := correct[k]; ok {
			hits++
		} else {
			wrong++
		}
	}
	if hits > 0 && wrong == 0 {
		return 0.5, fmt.Sprintf("some correct options checked (%d/%d)", hits, len(correct))
	}
	return 0, "wrong, correct answers are: " + joinValues(q.Answer)
}

// helpers

func wrongAnswer(v any) string {
	return "wrong, correct answer is " + formatValue(v)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		return joinValues(t)
	default:
		return fmt.Sprint(t)
	}
}

func joinValues(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, ", ")
}

func toSet(vs []any) (map[any]struct{}, bool) {
	m := make(map[any]struct{}, len(vs))
	for _, v := range vs {
		k, ok := scalarKey(v)
		if !ok {
			return nil, false
		}
		m[k] = struct{}{}
	}
	return m, true
}

func setEqual(a, b map[any]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
