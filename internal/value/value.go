package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing the constrained value types.
// Only Null, String, Int, Bool, Array and Object implement it.
type Value interface {
	isValue()
}

// Null represents an explicit null field.
type Null struct{}

func (Null) isValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string value.
type String string

func (String) isValue() {}

// Int is an integer value. Always int64, never float.
type Int int64

func (Int) isValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) isValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) isValue() {}

// Object maps field names to values.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) isValue() {}

// Get returns the field at key. The second result reports whether the
// field is present.
func (obj Object) Get(key string) (Value, bool) {
	v, ok := obj[key]
	return v, ok
}

// With returns a shallow copy of obj with key set to v.
func (obj Object) With(key string, v Value) Object {
	out := make(Object, len(obj)+1)
	for k, existing := range obj {
		out[k] = existing
	}
	out[key] = v
	return out
}

// Overlay returns a shallow copy of obj with every top-level field of
// partial replacing the field of the same name. Fields absent from partial
// keep their previous value (and identity). The result is always a new
// Object, even when partial is empty.
func (obj Object) Overlay(partial Object) Object {
	out := make(Object, len(obj)+len(partial))
	for k, v := range obj {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of obj.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	return obj.Overlay(nil)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs for some inputs.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// IsObject reports whether v is a non-nil Object. This is the test the
// reducer uses to decide whether a mutation result is a partial update.
func IsObject(v Value) bool {
	obj, ok := v.(Object)
	return ok && obj != nil
}

// AsObject returns v as an Object, or nil when v is anything else.
func AsObject(v Value) Object {
	obj, _ := v.(Object)
	return obj
}

// FromAny converts a plain Go value into a Value.
//
// Accepted inputs: nil, Value, string, bool, every signed and unsigned
// integer type, integral float32/float64, []any, []Value, map[string]any
// and map[string]Value. Nested containers are converted recursively.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not supported: %s", val)
		}
		return Int(n), nil
	case []Value:
		return Array(val), nil
	case map[string]Value:
		return Object(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer out of int64 range: %d", u)
	}
	return Int(int64(u)), nil
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("floats are not supported: %v", f)
	}
	return Int(int64(f)), nil
}

// ToAny converts a Value into plain Go values: nil, string, int64, bool,
// []any and map[string]any. Expression engines consume this form.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		if val == nil {
			return nil
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(Array, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("array index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// Parse decodes a JSON document into a Value.
func Parse(data []byte) (Value, error) {
	return unmarshalValue(bytes.TrimSpace(data))
}

func unmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[':
		var arr Array
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not supported: %s", string(data))
		}
		return Int(i), nil
	}
}

// MarshalJSON implements json.Marshaler for Object with RFC 8785 key order.
// This is not canonical marshaling (HTML escaping still applies); use
// MarshalCanonical for fingerprints.
func (obj Object) MarshalJSON() ([]byte, error) {
	if obj == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := Marshal(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	if arr == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Marshal encodes a Value as JSON. A nil Value encodes as null.
func Marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}
