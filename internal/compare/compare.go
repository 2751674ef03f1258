// Package compare diffs two decoded JSON trees with an absolute tolerance on
// numbers and reports every path at which they diverge.
package compare

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"parity/internal/core"
)

// DefaultEpsilon is the absolute tolerance for two numbers to be equal. Engine
// outputs are bounded currency figures, so no relative term is applied.
const DefaultEpsilon = 1e-6

// Root is the path of the top of a tree.
const Root = "$"

// Reasons attached to a Mismatch.
const (
	ReasonValue  = "value"
	ReasonLength = "length"
	ReasonType   = "type"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined stands in for the side of a comparison where a key or index is absent.
var Undefined any = undefined{}

// Mismatch is one divergent path with both sides.
type Mismatch struct {
	Path     string
	Actual   any
	Expected any
	Reason   string
}

func (m Mismatch) String() string {
	if m.Reason == ReasonLength {
		return fmt.Sprintf("%s: length %v != %v", m.Path, m.Actual, m.Expected)
	}
	return fmt.Sprintf("%s: %s != %s", m.Path, format(m.Actual), format(m.Expected))
}

// Comparator walks trees built from float64, []any, map[string]any and JSON scalars.
type Comparator struct {
	Epsilon float64
}

// New returns a comparator with the given tolerance; non-positive values fall
// back to DefaultEpsilon.
func New(epsilon float64) Comparator {
	if epsilon <= 0 || math.IsNaN(epsilon) {
		epsilon = DefaultEpsilon
	}
	return Comparator{Epsilon: epsilon}
}

// Diff compares actual against expected with DefaultEpsilon.
func Diff(actual, expected any, path string) []Mismatch {
	return New(DefaultEpsilon).Diff(actual, expected, path)
}

// Diff returns every divergent path; an empty result means the trees are
// equivalent.
func (c Comparator) Diff(actual, expected any, path string) []Mismatch {
	if path == "" {
		path = Root
	}
	var out []Mismatch
	c.walk(actual, expected, path, &out)
	return out
}

func (c Comparator) walk(actual, expected any, path string, out *[]Mismatch) {
	if a, ok := number(actual); ok {
		if e, ok := number(expected); ok {
			if !(math.Abs(a-e) <= c.Epsilon) {
				*out = append(*out, Mismatch{Path: path, Actual: actual, Expected: expected, Reason: ReasonValue})
			}
			return
		}
	}

	if a, ok := actual.([]any); ok {
		if e, ok := expected.([]any); ok {
			if len(a) != len(e) {
				*out = append(*out, Mismatch{Path: path, Actual: len(a), Expected: len(e), Reason: ReasonLength})
			}
			for i := 0; i < max(len(a), len(e)); i++ {
				c.walk(at(a, i), at(e, i), fmt.Sprintf("%s[%d]", path, i), out)
			}
			return
		}
	}

	if a, ok := actual.(map[string]any); ok {
		if e, ok := expected.(map[string]any); ok {
			for _, key := range unionKeys(a, e) {
				av, found := a[key]
				if !found {
					av = Undefined
				}
				ev, found := e[key]
				if !found {
					ev = Undefined
				}
				c.walk(av, ev, path+"."+key, out)
			}
			return
		}
	}

	if !reflect.DeepEqual(actual, expected) {
		reason := ReasonValue
		if reflect.TypeOf(actual) != reflect.TypeOf(expected) {
			reason = ReasonType
		}
		*out = append(*out, Mismatch{Path: path, Actual: actual, Expected: expected, Reason: reason})
	}
}

// ToTree converts any JSON-marshalable value into the generic tree form.
func ToTree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}
	return tree, nil
}

// DiffOutputs compares two engine outputs rooted at "$".
func (c Comparator) DiffOutputs(actual, expected core.Output) ([]Mismatch, error) {
	a, err := ToTree(actual.Normalize())
	if err != nil {
		return nil, fmt.Errorf("actual output: %w", err)
	}
	e, err := ToTree(expected.Normalize())
	if err != nil {
		return nil, fmt.Errorf("expected output: %w", err)
	}
	return c.Diff(a, e, Root), nil
}

// DiffOutputs compares two engine outputs with DefaultEpsilon.
func DiffOutputs(actual, expected core.Output) ([]Mismatch, error) {
	return New(DefaultEpsilon).DiffOutputs(actual, expected)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func at(s []any, i int) any {
	if i < len(s) {
		return s[i]
	}
	return Undefined
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func format(v any) string {
	switch x := v.(type) {
	case undefined:
		return x.String()
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return strconv.Quote(x)
	case []any, map[string]any:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	default:
		return fmt.Sprint(x)
	}
}
