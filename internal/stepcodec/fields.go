package stepcodec

import (
	"math"
	"strconv"
	"strings"
)

// object is a decoded JSON object read with lenient accessors: a field of
// the wrong type reads as its zero value.
type object map[string]any

func asObject(v any) (object, bool) {
	m, ok := v.(map[string]any)
	return object(m), ok
}

func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o object) str(key string) string {
	s, _ := o[key].(string)
	return s
}

func (o object) num(key string) float64 {
	return toNumber(o[key])
}

// rating reads a finite number. A missing field reads as 0; null or a
// value that does not parse as a finite number reports false.
func (o object) rating(key string) (float64, bool) {
	v, has := o[key]
	if !has {
		return 0, true
	}
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case bool:
		return toNumber(n), true
	}
	return 0, false
}

func (o object) boolean(key string) bool {
	b, _ := o[key].(bool)
	return b
}

func (o object) obj(key string) object {
	m, _ := asObject(o[key])
	return m
}

func (o object) list(key string) []any {
	l, _ := o[key].([]any)
	return l
}

// strs returns the non-blank strings of a list field, trimmed.
func (o object) strs(key string) []string {
	out := []string{}
	for _, v := range o.list(key) {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// score reads a 0..max integer score.
func (o object) score(key string, max float64) int {
	return int(math.Round(clamp(o.num(key), 0, max)))
}

func oneOf(v string, allowed []string, fallback string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}
