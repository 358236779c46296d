package summary

import (
	"encoding/json"
	"strings"
)

// CheckKind selects how a Check inspects its field.
type CheckKind string

const (
	// CheckText passes for a non-blank string.
	CheckText CheckKind = "text"
	// CheckPositive passes for a number above zero.
	CheckPositive CheckKind = "positive"
	// CheckAnyTrue passes for an object with at least one true member.
	CheckAnyTrue CheckKind = "anyTrue"
)

// Check is one condition of a Rule's AnyOf list.
type Check struct {
	Field string    `json:"field" yaml:"field"`
	Kind  CheckKind `json:"kind" yaml:"kind"`
}

// Rule overrides the generic completion test for one step.
//
// Ignore lists dotted field paths that never count as content; a path
// inside a list applies to every element, and such a list counts only
// through its meaningful elements. When AnyOf is set the step is complete
// only if one of its checks passes.
type Rule struct {
	Ignore []string `json:"ignore,omitempty" yaml:"ignore"`
	AnyOf  []Check  `json:"anyOf,omitempty" yaml:"any_of"`
}

// genericIgnore names keys that never count as content at any depth.
var genericIgnore = map[string]bool{"updatedAt": true, "version": true}

// DefaultRules are the per-step completion overrides.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"1-4": {Ignore: []string{"leadMetrics.id"}},
		"1-6": {Ignore: []string{"plan.method", "targetSessions"}},
		"1-10": {AnyOf: []Check{
			{Field: "rationale", Kind: CheckText},
			{Field: "nextActions", Kind: CheckText},
			{Field: "evidenceQuality", Kind: CheckPositive},
			{Field: "severity", Kind: CheckPositive},
			{Field: "willingnessToPay", Kind: CheckPositive},
			{Field: "feasibility", Kind: CheckPositive},
			{Field: "differentiation", Kind: CheckPositive},
			{Field: "artifactsChecklist", Kind: CheckAnyTrue},
		}},
	}
}

// Meaningful is the generic completion test: a non-blank string, a
// non-zero number, true, a non-empty list, or an object with a
// meaningful member other than its bookkeeping keys.
func Meaningful(v any) bool {
	return meaningful(v, nil, "")
}

func meaningful(v any, ignore map[string]bool, path string) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case float64:
		return x != 0
	case bool:
		return x
	case []any:
		if !reachesInto(ignore, path) {
			return len(x) > 0
		}
		for _, item := range x {
			if meaningful(item, ignore, path) {
				return true
			}
		}
		return false
	case map[string]any:
		for k, val := range x {
			if genericIgnore[k] {
				continue
			}
			p := k
			if path != "" {
				p = path + "." + k
			}
			if ignore[p] {
				continue
			}
			if meaningful(val, ignore, p) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// reachesInto reports whether an ignore path names a member below path.
func reachesInto(ignore map[string]bool, path string) bool {
	if path == "" {
		return false
	}
	for p := range ignore {
		if strings.HasPrefix(p, path+".") {
			return true
		}
	}
	return false
}

// Complete applies rule to a step payload.
func (r Rule) Complete(payload any) bool {
	if len(r.AnyOf) > 0 {
		obj, ok := payload.(map[string]any)
		if !ok {
			return Meaningful(payload)
		}
		for _, c := range r.AnyOf {
			if c.pass(obj[c.Field]) {
				return true
			}
		}
		return false
	}
	ignore := make(map[string]bool, len(r.Ignore))
	for _, p := range r.Ignore {
		ignore[p] = true
	}
	return meaningful(payload, ignore, "")
}

func (c Check) pass(v any) bool {
	switch c.Kind {
	case CheckText:
		s, _ := v.(string)
		return strings.TrimSpace(s) != ""
	case CheckPositive:
		n, _ := v.(float64)
		return n > 0
	case CheckAnyTrue:
		obj, _ := v.(map[string]any)
		for _, val := range obj {
			if b, _ := val.(bool); b {
				return true
			}
		}
	}
	return false
}

// toGeneric re-decodes a typed payload into plain JSON values.
func toGeneric(p any) any {
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	return v
}
