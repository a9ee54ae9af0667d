package mutate

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statebox/internal/host"
	"github.com/roach88/statebox/internal/store"
	"github.com/roach88/statebox/internal/value"
)

func TestSetReplacesField(t *testing.T) {
	prev := value.Object{"count": value.Int(0), "other": value.Int(1)}

	got := Set("count")(prev, value.Int(5))

	assert.Equal(t, value.Object{"count": value.Int(5), "other": value.Int(1)}, got)
	assert.Equal(t, value.Int(0), prev["count"], "input is not modified")
}

func TestSetWithoutPayloadIsNull(t *testing.T) {
	got := Set("count")(value.Object{"count": value.Int(3)})
	assert.Equal(t, value.Object{"count": value.Null{}}, got)
}

func TestSetAddsMissingField(t *testing.T) {
	got := Set("label")(value.Object{}, value.String("x"))
	assert.Equal(t, value.Object{"label": value.String("x")}, got)
}

func TestMergeStateFillsDefaults(t *testing.T) {
	initial := value.Object{"data": value.Object{"name": value.String("John"), "age": value.Int(25)}}
	prev := value.Object{"data": value.Object{"name": value.String("Alice")}}

	got := MergeState("data", initial, prev, value.Object{"age": value.Int(30)})

	assert.Equal(t, value.Object{"name": value.String("Alice"), "age": value.Int(30)}, got["data"])
}

func TestMergeStatePrecedence(t *testing.T) {
	initial := value.Object{"data": value.Object{"a": value.Int(1), "b": value.Int(1), "c": value.Int(1)}}
	prev := value.Object{"data": value.Object{"b": value.Int(2), "c": value.Int(2)}, "keep": value.Bool(true)}

	got := MergeState("data", initial, prev, value.Object{"c": value.Int(3)})

	assert.Equal(t, value.Object{
		"data": value.Object{"a": value.Int(1), "b": value.Int(2), "c": value.Int(3)},
		"keep": value.Bool(true),
	}, got)
}

func TestMergeStateNonObjectOperands(t *testing.T) {
	initial := value.Object{"data": value.String("not an object")}
	prev := value.Object{}

	got := MergeState("data", initial, prev, nil)
	assert.Equal(t, value.Object{"data": value.Object{}}, got)
}

func TestMergeStateKeepsOtherFieldIdentity(t *testing.T) {
	other := value.Object{"x": value.Int(1)}
	prev := value.Object{"data": value.Object{}, "other": other}

	got := MergeState("data", value.Object{}, prev, value.Object{"y": value.Int(2)})
	assert.True(t, value.Same(other, got["other"]))
}

func TestMerge(t *testing.T) {
	initial := value.Object{"user": value.Object{"name": value.String(""), "age": value.Int(0)}}
	prev := value.Object{"user": value.Object{"name": value.String("Ann"), "age": value.Int(30)}}

	got := Merge("user", initial)(prev, value.Object{"age": value.Int(31)})
	assert.Equal(t, value.Object{"user": value.Object{"name": value.String("Ann"), "age": value.Int(31)}}, got)

	got = Merge("user", initial)(value.Object{})
	assert.Equal(t, value.Object{"user": value.Object{"name": value.String(""), "age": value.Int(0)}}, got)
}

func TestToggle(t *testing.T) {
	flip := Toggle("on")
	assert.Equal(t, value.Object{"on": value.Bool(true)}, flip(value.Object{"on": value.Bool(false)}))
	assert.Equal(t, value.Object{"on": value.Bool(false)}, flip(value.Object{"on": value.Bool(true)}))
	assert.Equal(t, value.Object{"on": value.Bool(true)}, flip(value.Object{}))
}

func TestHelpersDriveAStore(t *testing.T) {
	initial := value.Object{
		"count": value.Int(0),
		"on":    value.Bool(false),
		"user":  value.Object{"name": value.String(""), "age": value.Int(0)},
	}
	s, err := store.New(initial, store.Mutations{
		"setCount": Set("count"),
		"flip":     Toggle("on"),
		"setUser":  Merge("user", initial),
	}, store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	var state value.Object
	var actions store.Actions
	root := host.NewRoot(host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err = root.Mount(s.Provider(host.Component{Name: "c", Render: func(r *host.Render) {
		state, actions = s.UseStore(r)
	}}))
	require.NoError(t, err)

	actions.Must("setCount")(value.Int(5))
	actions.Must("flip")()
	actions.Must("setUser")(value.Object{"name": value.String("Ann")})

	assert.Equal(t, value.Object{
		"count": value.Int(5),
		"on":    value.Bool(true),
		"user":  value.Object{"name": value.String("Ann"), "age": value.Int(0)},
	}, state)
}
