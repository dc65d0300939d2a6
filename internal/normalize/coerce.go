package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// text returns v as a trimmed, non-empty string. Numbers and booleans are
// rendered; null, blanks, objects and arrays are absent.
func text(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// integer returns v as a count, accepting numbers and numeric strings.
// Negative values and values above math.MaxInt32 are absent.
func integer(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			if i < 0 || i > math.MaxInt32 {
				return 0, false
			}
			return int(i), true
		}
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// textList keeps the non-blank scalar entries of a JSON array. The result is
// never nil.
func textList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := text(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// present reports whether key exists in obj with a non-null value.
func present(obj map[string]any, key string) bool {
	v, ok := obj[key]
	return ok && v != nil
}

// asObject returns v as a JSON object, or nil.
func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// typeIssues collects paths whose JSON type does not match what the schema
// expects, so they can be reported together.
type typeIssues []string

// object returns obj[key] when it is an object. A present value of another
// type is recorded as an issue at path.
func (ti *typeIssues) object(obj map[string]any, key, path string) map[string]any {
	if !present(obj, key) {
		return nil
	}
	m, ok := obj[key].(map[string]any)
	if !ok {
		*ti = append(*ti, path)
	}
	return m
}

// array returns obj[key] when it is an array. A present value of another type
// is recorded as an issue at path.
func (ti *typeIssues) array(obj map[string]any, key, path string) []any {
	if !present(obj, key) {
		return nil
	}
	a, ok := obj[key].([]any)
	if !ok {
		*ti = append(*ti, path)
	}
	return a
}
