package types

import (
	"bytes"
	"encoding/json"
)

// Nullable unwraps the backend's null-safe serialization. The server emits
// optional fields either as plain values, as JSON null, or as a tagged
// wrapper {"valid": bool, "value": ...}; all three collapse to a plain
// optional value here so the wrapper shape never leaks past the API
// boundary.
type Nullable[T any] struct {
	Present bool
	Value   *T
}

type nullableProbe struct {
	Valid *bool           `json:"valid"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Present = true
		n.Value = nil
		return nil
	}

	if trimmed[0] == '{' {
		var probe nullableProbe
		if err := json.Unmarshal(trimmed, &probe); err == nil && probe.Valid != nil {
			n.Present = true
			if !*probe.Valid {
				n.Value = nil
				return nil
			}
			if len(bytes.TrimSpace(probe.Value)) == 0 || bytes.Equal(bytes.TrimSpace(probe.Value), []byte("null")) {
				n.Value = nil
				return nil
			}
			var parsed T
			if err := json.Unmarshal(probe.Value, &parsed); err != nil {
				return err
			}
			n.Value = &parsed
			return nil
		}
	}

	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Present = true
	n.Value = &parsed
	return nil
}

// Ptr returns the unwrapped optional value.
func (n Nullable[T]) Ptr() *T {
	return n.Value
}

// Or returns the value or a fallback when absent.
func (n Nullable[T]) Or(fallback T) T {
	if n.Value == nil {
		return fallback
	}
	return *n.Value
}
