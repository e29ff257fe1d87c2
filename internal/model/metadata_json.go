package model

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders a MetadataValue as its underlying primitive, not as
// the tagged-union envelope. The wire and storage shape is a plain JSON
// primitive; the envelope only exists so Go code can't accidentally hold a
// nested object or array in a metadata map.
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Str != nil:
		return json.Marshal(*v.Str)
	case v.Bool != nil:
		return json.Marshal(*v.Bool)
	case v.Number != nil:
		return json.Marshal(*v.Number)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a plain JSON primitive (string/bool/number) and
// rejects objects, arrays, and null; metadata values must be a bounded
// primitive, per the ingest contract.
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		v.Str = &t
	case bool:
		v.Bool = &t
	case float64:
		v.Number = &t
	default:
		return fmt.Errorf("metadata value must be a string, bool, or number, got %T", raw)
	}
	return nil
}

// AsString returns the string and true when v holds a string; for a bool or
// number value it returns "", false.
func (v MetadataValue) AsString() (string, bool) {
	if v.Str == nil {
		return "", false
	}
	return *v.Str, true
}
