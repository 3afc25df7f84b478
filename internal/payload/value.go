/*
Package payload models the serializable tool inputs and outputs stored in
history entries.

Instead of an open "any" type, payloads are a closed union of JSON-compatible
shapes: string, number, boolean, null, ordered list, and string-keyed map.
The closed union makes equality, redaction, and canonical serialization
well-defined for history deduplication.
*/
package payload

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies a payload variant.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Value is one serializable payload. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	m    map[string]Value
}

// Null returns the null payload.
func Null() Value { return Value{} }

// String wraps a string payload.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric payload. All numbers carry float64 (JSON) semantics,
// so 1 and 1.0 are the same value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a boolean payload.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List wraps an ordered sequence payload.
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// Map wraps a string-keyed map payload. The entries map is copied.
func Map(entries map[string]Value) Value {
	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null payload.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string content (empty unless KindString).
func (v Value) Str() string { return v.str }

// Num returns the numeric content (zero unless KindNumber).
func (v Value) Num() float64 { return v.num }

// BoolVal returns the boolean content (false unless KindBool).
func (v Value) BoolVal() bool { return v.b }

// Items returns the list content (nil unless KindList).
func (v Value) Items() []Value { return v.list }

// Entries returns the map content (nil unless KindMap).
func (v Value) Entries() map[string]Value { return v.m }

// Text renders v as a human-readable string for display and indexing.
// Strings render bare, composites render as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// IsBlank reports whether v is null or a whitespace-only string.
// Blank primary inputs do not qualify for auto-run.
func (v Value) IsBlank() bool {
	if v.kind == KindNull {
		return true
	}
	return v.kind == KindString && strings.TrimSpace(v.str) == ""
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("payload number %v is not representable in JSON", v.num)
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		// Emit keys sorted so the encoding doubles as the canonical form.
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			valJSON, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			sb.Write(keyJSON)
			sb.WriteByte(':')
			sb.Write(valJSON)
		}
		sb.WriteByte('}')
		return []byte(sb.String()), nil
	default:
		return nil, fmt.Errorf("unknown payload kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := fromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromJSON parses a JSON document into a payload Value.
func FromJSON(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, fmt.Errorf("failed to parse payload: %w", err)
	}
	return v, nil
}

// fromInterface converts a decoded JSON value into the closed union.
func fromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("unrepresentable number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, fmt.Errorf("unsupported payload type %T", raw)
	}
}
