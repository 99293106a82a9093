package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type QuestionType string

const (
	TypeMCQ      QuestionType = "mcq"
	TypeNumeric  QuestionType = "numeric"
	TypeShort    QuestionType = "short"
	TypeCheckbox QuestionType = "checkbox"
)

// ErrMalformedSchema is wrapped by every SchemaError.
var ErrMalformedSchema = errors.New("malformed schema")

// SchemaError reports the question that could not be parsed.
type SchemaError struct {
	QuestionID string
	Reason     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("malformed schema: question %q: %s", e.QuestionID, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrMalformedSchema }

// Question is one entry of an answer schema. The set of implementations is
// closed: MCQ, Numeric, Short and Checkbox.
type Question interface {
	Type() QuestionType
	// Correct returns the canonical answer as echoed back in a breakdown.
	Correct() any
	isQuestion()
}

type MCQ struct {
	Answer  any // string, float64 or bool
	Options []string
}

type Numeric struct {
	Answer    float64
	Tolerance float64 // absolute, >= 0
}

type Short struct {
	Answer   string
	Keywords []string
}

type Checkbox struct {
	Answer  []any // scalars, order irrelevant
	Options []string
}

func (MCQ) Type() QuestionType      { return TypeMCQ }
func (Numeric) Type() QuestionType  { return TypeNumeric }
func (Short) Type() QuestionType    { return TypeShort }
func (Checkbox) Type() QuestionType { return TypeCheckbox }

func (q MCQ) Correct() any      { return q.Answer }
func (q Numeric) Correct() any  { return q.Answer }
func (q Short) Correct() any    { return q.Answer }
func (q Checkbox) Correct() any { return q.Answer }

func (MCQ) isQuestion()      {}
func (Numeric) isQuestion()  {}
func (Short) isQuestion()    {}
func (Checkbox) isQuestion() {}

// Schema maps question ID to its grading rules. It is authored once when an
// assignment is created and treated as read-only afterwards.
type Schema map[string]Question

// MaxScore is the number of questions; every question is worth one point.
func (s Schema) MaxScore() float64 { return float64(len(s)) }

// IDs returns the question IDs in lexical order.
func (s Schema) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// wireQuestion is the JSON shape stored with assignments and accepted from teachers.
type wireQuestion struct {
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options,omitempty"`
	Answer    any          `json:"answer"`
	Tolerance *float64     `json:"tolerance,omitempty"`
	Keywords  []string     `json:"keywords,omitempty"`
}

func (s *Schema) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(Schema, len(raw))
	for _, id := range ids {
		var w wireQuestion
		if err := json.Unmarshal(raw[id], &w); err != nil {
			return &SchemaError{QuestionID: id, Reason: err.Error()}
		}
		q, err := parseQuestion(id, w)
		if err != nil {
			return err
		}
		out[id] = q
	}
	*s = out
	return nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	out := make(map[string]wireQuestion, len(s))
	for id, q := range s {
		out[id] = toWire(q)
	}
	return json.Marshal(out)
}

// ParseSchema decodes and validates a JSON answer schema.
func ParseSchema(b []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func parseQuestion(id string, w wireQuestion) (Question, error) {
	bad := func(format string, args ...any) error {
		return &SchemaError{QuestionID: id, Reason: fmt.Sprintf(format, args...)}
	}
	if w.Tolerance != nil && w.Type != TypeNumeric {
		return nil, bad("tolerance is only valid for numeric questions")
	}
	if len(w.Keywords) > 0 && w.Type != TypeShort {
		return nil, bad("keywords are only valid for short questions")
	}

	switch w.Type {
	case TypeMCQ:
		if _, ok := scalarKey(w.Answer); !ok {
			return nil, bad("mcq answer must be a string, number or boolean")
		}
		return MCQ{Answer: w.Answer, Options: w.Options}, nil

	case TypeNumeric:
		v, ok := parseNumber(w.Answer)
		if !ok {
			return nil, bad("numeric answer %v is not a number", w.Answer)
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, bad("numeric answer must be finite")
		}
		tol := 0.0
		if w.Tolerance != nil {
			tol = *w.Tolerance
		}
		if tol < 0 {
			return nil, bad("tolerance must be non-negative")
		}
		return Numeric{Answer: v, Tolerance: tol}, nil

	case TypeShort:
		ans, ok := w.Answer.(string)
		if !ok {
			return nil, bad("short answer must be a string")
		}
		return Short{Answer: ans, Keywords: w.Keywords}, nil

	case TypeCheckbox:
		list, ok := w.Answer.([]any)
		if !ok {
			return nil, bad("checkbox answer must be a list")
		}
		for _, e := range list {
			if _, ok := scalarKey(e); !ok {
				return nil, bad("checkbox answer contains a non-scalar value")
			}
		}
		return Checkbox{Answer: list, Options: w.Options}, nil

	case "":
		return nil, bad("missing type")
	default:
		return nil, bad("unknown type %q", w.Type)
	}
}

func toWire(q Question) wireQuestion {
	switch v := q.(type) {
	case MCQ:
		return wireQuestion{Type: TypeMCQ, Answer: v.Answer, Options: v.Options}
	case Numeric:
		tol := v.Tolerance
		return wireQuestion{Type: TypeNumeric, Answer: v.Answer, Tolerance: &tol}
	case Short:
		return wireQuestion{Type: TypeShort, Answer: v.Answer, Keywords: v.Keywords}
	case Checkbox:
		return wireQuestion{Type: TypeCheckbox, Answer: v.Answer, Options: v.Options}
	default:
		panic(fmt.Sprintf("scoring: unexpected question %T", q))
	}
}

// PublicQuestion is what students see before grading: no answers, no keywords.
type PublicQuestion struct {
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// Redact strips correct answers and grading parameters from s.
func (s Schema) Redact() map[string]PublicQuestion {
	out := make(map[string]PublicQuestion, len(s))
	for id, q := range s {
		pq := PublicQuestion{Type: q.Type()}
		switch v := q.(type) {
		case MCQ:
			pq.Options = v.Options
		case Checkbox:
			pq.Options = v.Options
		}
		out[id] = pq
	}
	return out
}

// parseNumber accepts JSON numbers, Go numeric types and numeric strings
// with surrounding whitespace.
func parseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// scalarKey normalizes a raw answer value into a comparable map key.
// Numbers of any Go type collapse to float64 so 10 and 10.0 compare equal.
func scalarKey(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return t, true
	case float64, float32, int, int64, json.Number:
		f, ok := parseNumber(t)
		return f, ok
	default:
		return nil, false
	}
}
