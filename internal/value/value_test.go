package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayReplacesTopLevelKeysOnly(t *testing.T) {
	user := Object{"name": String("Ann"), "age": Int(30)}
	prev := Object{"count": Int(1), "user": user}

	next := prev.Overlay(Object{"count": Int(2)})

	assert.Equal(t, Int(2), next["count"])
	assert.True(t, Same(user, next["user"]), "untouched sibling keeps its identity")
	assert.Equal(t, Int(1), prev["count"], "receiver is not modified")
	assert.False(t, Same(prev, next))
}

func TestOverlayEmptyPartialStillCopies(t *testing.T) {
	prev := Object{"a": Int(1)}
	next := prev.Overlay(Object{})

	assert.Equal(t, prev, next)
	assert.False(t, Same(prev, next))
}

func TestOverlayReplacesNestedObjectWholesale(t *testing.T) {
	prev := Object{"user": Object{"name": String("Ann"), "age": Int(30)}}
	next := prev.Overlay(Object{"user": Object{"name": String("Bob")}})

	assert.Equal(t, Object{"name": String("Bob")}, next["user"])
}

func TestWith(t *testing.T) {
	prev := Object{"a": Int(1)}
	next := prev.With("b", Bool(true))

	assert.Equal(t, Object{"a": Int(1), "b": Bool(true)}, next)
	assert.Len(t, prev, 1)
}

func TestIsObject(t *testing.T) {
	assert.True(t, IsObject(Object{}))
	assert.False(t, IsObject(Object(nil)))
	assert.False(t, IsObject(nil))
	assert.False(t, IsObject(Null{}))
	assert.False(t, IsObject(Array{}))
	assert.False(t, IsObject(Int(1)))
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"bool", true, Bool(true)},
		{"int", 7, Int(7)},
		{"uint8", uint8(3), Int(3)},
		{"integral float", float64(12), Int(12)},
		{"json number", json.Number("42"), Int(42)},
		{"slice", []any{1, "a"}, Array{Int(1), String("a")}},
		{"map", map[string]any{"k": []any{false}}, Object{"k": Array{Bool(false)}}},
		{"value passthrough", Object{"a": Int(1)}, Object{"a": Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyRejectsFloats(t *testing.T) {
	for _, f := range []float64{1.5, math.NaN(), math.Inf(1)} {
		_, err := FromAny(f)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "floats are not supported")
	}

	_, err := FromAny(map[string]any{"x": []any{0.25}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `["x"]`)
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)

	_, err = FromAny(uint64(math.MaxUint64))
	require.Error(t, err)
}

func TestToAnyRoundTrip(t *testing.T) {
	obj := Object{
		"n":    Int(1),
		"s":    String("x"),
		"b":    Bool(false),
		"z":    Null{},
		"list": Array{Int(2)},
	}

	plain := ToAny(obj)
	assert.Equal(t, map[string]any{
		"n":    int64(1),
		"s":    "x",
		"b":    false,
		"z":    nil,
		"list": []any{int64(2)},
	}, plain)

	back, err := FromAny(plain)
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}

func TestParse(t *testing.T) {
	v, err := Parse([]byte(` {"count": 1, "tags": ["a", null], "on": true} `))
	require.NoError(t, err)
	assert.Equal(t, Object{
		"count": Int(1),
		"tags":  Array{String("a"), Null{}},
		"on":    Bool(true),
	}, v)
}

func TestParseRejectsFloat(t *testing.T) {
	_, err := Parse([]byte(`{"x": 1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `object key "x"`)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse([]byte("  "))
	require.Error(t, err)
}

func TestObjectMarshalJSONSortsKeys(t *testing.T) {
	data, err := json.Marshal(Object{"b": Int(1), "a": Null{}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":null,"b":1}`, string(data))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16.
	obj := Object{"\U0001F600": Int(1), "\uff61": Int(2)}
	assert.Equal(t, []string{"\U0001F600", "\uff61"}, obj.SortedKeys())
}
