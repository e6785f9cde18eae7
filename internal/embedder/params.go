package embedder

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Params is the loosely-typed parameter map parsed from a JSON layer
// config. Each embedder variant converts it into a strict, typed config
// during construction, so parsing errors surface as ConfigError before
// any input is processed.
type Params map[string]any

// String returns the string value for key, or def when absent.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

// Int returns the integer value for key, or def when absent. JSON numbers
// decode as float64, so both forms are accepted.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// Float returns the float value for key, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// IntPair returns a two-element integer range for key (e.g. an n-gram
// range encoded as [1, 2]), or def when absent.
func (p Params) IntPair(key string, def [2]int) ([2]int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	raw, ok := v.([]any)
	if !ok || len(raw) != 2 {
		return def, fmt.Errorf("expected two-element array, got %v", v)
	}
	var out [2]int
	for i, e := range raw {
		switch n := e.(type) {
		case int:
			out[i] = n
		case float64:
			out[i] = int(n)
		default:
			return def, fmt.Errorf("expected integers, got %T", e)
		}
	}
	return out, nil
}

// canonicalJSON renders a typed config value as a stable JSON string:
// struct field order is fixed by the type, map keys are sorted by
// encoding/json. Used as the configuration component of cache keys, so
// two configs that normalize to the same recognized parameters always
// fingerprint identically.
func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// unknownKeys returns the keys of p that are not in the recognized set,
// sorted for stable error messages.
func unknownKeys(p Params, recognized ...string) []string {
	known := make(map[string]struct{}, len(recognized))
	for _, k := range recognized {
		known[k] = struct{}{}
	}
	var out []string
	for k := range p {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
