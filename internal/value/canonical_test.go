package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"nil", nil, "null"},
		{"null", Null{}, "null"},
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"nil object", Object(nil), "null"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"nested", Object{"z": Object{"b": Int(1), "a": Null{}}, "a": Int(3)}, `{"a":3,"z":{"a":null,"b":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	result, err := MarshalCanonical(String("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))
}

func TestMarshalCanonicalKeepsEscapedBackslashText(t *testing.T) {
	// A literal backslash followed by the text u2028 must stay escaped.
	result, err := MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonicalEscapesControlCharacters(t *testing.T) {
	result, err := MarshalCanonical(String("a\nb\"c"))
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\"c"`, string(result))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	obj := Object{"b": Int(1), "a": Array{String("x")}, "c": Object{"y": Bool(true), "x": Null{}}}
	first := MustMarshalCanonical(obj)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, MustMarshalCanonical(obj))
	}
}
