package dossier

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// member binds a JSON object key to a typed field. zero reports whether the
// field holds its zero value at encode time.
type member struct {
	key       string
	value     any
	zero      bool
	omitEmpty bool
}

// decodeObject decodes data member by member. Keys without a member, and
// keys whose value does not fit the member type, are returned verbatim.
func decodeObject(data []byte, members []member) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	known := make(map[string]any, len(members))
	for _, m := range members {
		known[m.key] = m.value
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if dst, ok := known[k]; ok && json.Unmarshal(v, dst) == nil {
			continue
		}
		if extra == nil {
			extra = map[string]json.RawMessage{}
		}
		extra[k] = v
	}
	return extra, nil
}

// encodeObject writes members in order, then the remaining extra keys
// sorted. A zero member whose key is in extra is written with the preserved
// value.
func encodeObject(members []member, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	write := func(key string, value []byte) {
		if n > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
		n++
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m.key] = true
		if kept, ok := extra[m.key]; ok && m.zero {
			write(m.key, kept)
			continue
		}
		if m.zero && m.omitEmpty {
			continue
		}
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		write(m.key, v)
	}
	rest := make([]string, 0, len(extra))
	for k := range extra {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.SortFunc(rest, strings.Compare)
	for _, k := range rest {
		write(k, extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
