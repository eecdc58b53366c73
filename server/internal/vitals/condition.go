package vitals

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is a parsed threshold expression over one reading field, of the
// form "<field> <op> <value>", for example "spo2 < 90" or "hr >= 130".
type Condition struct {
	Field     string
	Op        string
	Threshold float64
}

// ParseCondition parses s. Fields are spo2 and hr; operators are
// <, <=, >, >= and ==.
func ParseCondition(s string) (Condition, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Condition{}, fmt.Errorf("condition %q: want \"<field> <op> <value>\"", s)
	}
	c := Condition{Field: parts[0], Op: parts[1]}

	if _, ok := c.value(Reading{}); !ok {
		return Condition{}, fmt.Errorf("condition %q: unknown field %q: want spo2|hr", s, c.Field)
	}
	if _, ok := compare[c.Op]; !ok {
		return Condition{}, fmt.Errorf("condition %q: unknown operator %q", s, c.Op)
	}
	t, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: value: %w", s, err)
	}
	c.Threshold = t
	return c, nil
}

// Eval reports whether r satisfies c, along with the field value it tested.
// A zero Condition never matches.
func (c Condition) Eval(r Reading) (bool, float64) {
	v, ok := c.value(r)
	cmp, known := compare[c.Op]
	if !ok || !known {
		return false, 0
	}
	return cmp(v, c.Threshold), v
}

func (c Condition) String() string {
	return c.Field + " " + c.Op + " " + strconv.FormatFloat(c.Threshold, 'g', -1, 64)
}

func (c Condition) value(r Reading) (float64, bool) {
	switch c.Field {
	case "spo2":
		return r.SpO2, true
	case "hr":
		return r.HR, true
	}
	return 0, false
}

var compare = map[string]func(v, t float64) bool{
	"<":  func(v, t float64) bool { return v < t },
	"<=": func(v, t float64) bool { return v <= t },
	">":  func(v, t float64) bool { return v > t },
	">=": func(v, t float64) bool { return v >= t },
	"==": func(v, t float64) bool { return v == t },
}
