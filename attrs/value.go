// Package attrs holds the family-scoped attribute maps carried by components and
// style sheets, and the patches operations apply to them.
//
// A patch value has three states. An absent key leaves the attribute untouched,
// a JSON null clears it (falling back to the inherited value) and anything else
// sets it.
package attrs

import (
	"bytes"
	"encoding/json"
	"reflect"
)

type valueState uint8

const (
	stateUnset valueState = iota
	stateClear
	stateSet
)

// Value is a tri-state patch value.
type Value struct {
	state valueState
	v     any
}

// Set returns a value that assigns v.
func Set(v any) Value { return Value{state: stateSet, v: v} }

// Clear returns a value that removes the attribute.
func Clear() Value { return Value{state: stateClear} }

func (v Value) IsZero() bool  { return v.state == stateUnset }
func (v Value) IsClear() bool { return v.state == stateClear }
func (v Value) IsSet() bool   { return v.state == stateSet }

// Get returns the assigned value; nil unless IsSet.
func (v Value) Get() any { return v.v }

// String returns the assigned value when it is a string.
func (v Value) String() (string, bool) {
	s, ok := v.v.(string)
	return s, ok && v.state == stateSet
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.state != stateSet {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Clear()
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Set(raw)
	return nil
}

// Equal reports whether two values have the same state and content.
func (v Value) Equal(o Value) bool {
	return v.state == o.state && equalAny(v.v, o.v)
}

func equalAny(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize maps integer types onto float64 so values decoded from JSON compare
// equal to values built in Go.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}

// Float converts a JSON number to float64.
func Float(v any) (float64, bool) {
	switch x := normalize(v).(type) {
	case float64:
		return x, true
	}
	return 0, false
}

// Int converts a JSON number to int.
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
