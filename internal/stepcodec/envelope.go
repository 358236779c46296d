package stepcodec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wrap returns the stored envelope for payload stamped at ts. Object
// payloads are stored flat with an injected updatedAt; anything else is
// stored as {"value": payload, "updatedAt": ts}.
func Wrap(payload any, ts string) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("stepcodec: encode payload: %w", err)
	}
	stamp, _ := json.Marshal(ts)

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("stepcodec: encode payload: %w", err)
		}
		fields["updatedAt"] = stamp
		return json.Marshal(fields)
	}
	return json.Marshal(map[string]json.RawMessage{
		"value":     trimmed,
		"updatedAt": stamp,
	})
}

// Unwrap strips the envelope from a stored step value. It returns the bare
// payload, the envelope timestamp (if any) and false when nothing usable is
// stored.
func Unwrap(raw json.RawMessage) (payload json.RawMessage, updatedAt string, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, "", false
	}
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, "", false
		}
		return trimmed, "", true
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, "", false
	}
	if ts, has := fields["updatedAt"]; has {
		_ = json.Unmarshal(ts, &updatedAt)
		if v, wrapped := fields["value"]; wrapped {
			if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
				return nil, updatedAt, false
			}
			return v, updatedAt, true
		}
		delete(fields, "updatedAt")
		out, err := json.Marshal(fields)
		if err != nil {
			return nil, "", false
		}
		return out, updatedAt, true
	}
	return trimmed, "", true
}

// UnwrapValue is Unwrap decoded into a generic value.
func UnwrapValue(raw json.RawMessage) (any, string, bool) {
	payload, ts, ok := Unwrap(raw)
	if !ok {
		return nil, ts, false
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, ts, false
	}
	return v, ts, true
}
