package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
// This is the only serialization used for fingerprints, the dispatch
// journal and golden traces.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//
// Null (and a nil Value) encodes as null; state fields are allowed to be
// explicitly empty.
func MarshalCanonical(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return marshalCanonicalString(string(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Array:
		return marshalCanonicalArray(val)
	case Object:
		if val == nil {
			return []byte("null"), nil
		}
		return marshalCanonicalObject(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// MustMarshalCanonical panics if v cannot be encoded. Every Value built by
// this package can be, so the panic marks a foreign Value implementation.
func MustMarshalCanonical(v Value) []byte {
	b, err := MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return b
}

func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	// encoding/json always escapes U+2028 and U+2029; RFC 8785 does not.
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators rewrites the \u2028 and \u2029 escapes into the
// literal characters. An escape preceded by an odd run of backslashes is
// plain text inside the string and stays as is.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	backslashes := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\\' && backslashes%2 == 0 && i+5 < len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			backslashes = 0
			continue
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		out = append(out, c)
	}
	return out
}

func marshalCanonicalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("object key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
