package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statebox/internal/host"
	"github.com/roach88/statebox/internal/mutate"
	"github.com/roach88/statebox/internal/store"
	"github.com/roach88/statebox/internal/value"
)

func openTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenAppliesPragmasAndMigrations(t *testing.T) {
	j := openTestJournal(t)

	mode, err := j.pragma("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	timeout, err := j.pragma("busy_timeout")
	require.NoError(t, err)
	assert.Equal(t, "5000", timeout)

	version, err := j.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	first, err := Open(path, WithSession("s1"))
	require.NoError(t, err)
	require.NoError(t, first.RecordDispatch(context.Background(), store.DispatchRecord{
		Store: "counter", Provider: "p1", Seq: 1, Action: "increment",
	}))
	require.NoError(t, first.Close())

	second, err := Open(path, WithSession("s2"))
	require.NoError(t, err)
	defer second.Close()

	records, err := second.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].Session)
}

func TestDefaultSessionIsUUID(t *testing.T) {
	j := openTestJournal(t)
	assert.Len(t, j.Session(), 36)
}

func TestRecordDispatchRoundTrip(t *testing.T) {
	j := openTestJournal(t, WithSession("session-a"))
	ctx := context.Background()

	rec := store.DispatchRecord{
		Store:       "counter",
		Provider:    "p1",
		Seq:         3,
		Action:      "setUser",
		Payload:     []value.Value{value.Object{"name": value.String("Ann")}, value.Int(2)},
		Changed:     []string{"user"},
		Fingerprint: "abc",
	}
	require.NoError(t, j.RecordDispatch(ctx, rec))

	records, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "session-a", got.Session)
	assert.Equal(t, "counter", got.Store)
	assert.Equal(t, "p1", got.Provider)
	assert.Equal(t, int64(3), got.Seq)
	assert.Equal(t, "setUser", got.Action)
	assert.Equal(t, value.Array{value.Object{"name": value.String("Ann")}, value.Int(2)}, got.Payload)
	assert.Equal(t, []string{"user"}, got.Changed)
	assert.Equal(t, "abc", got.Fingerprint)
	assert.False(t, got.Noop)
}

func TestRecordDispatchEmptyPayloadAndNoop(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordDispatch(ctx, store.DispatchRecord{
		Store: "counter", Provider: "p1", Seq: 1, Action: "nothing", Noop: true,
	}))

	records, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, value.Array{}, records[0].Payload)
	assert.Equal(t, []string{}, records[0].Changed)
	assert.True(t, records[0].Noop)
}

func TestRecordDispatchDuplicateIgnored(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	rec := store.DispatchRecord{Store: "counter", Provider: "p1", Seq: 1, Action: "increment"}

	require.NoError(t, j.RecordDispatch(ctx, rec))
	require.NoError(t, j.RecordDispatch(ctx, rec))

	records, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	write := func(session string, recs ...store.DispatchRecord) {
		j, err := Open(path, WithSession(session))
		require.NoError(t, err)
		defer j.Close()
		for _, r := range recs {
			require.NoError(t, j.RecordDispatch(ctx, r))
		}
	}
	write("b",
		store.DispatchRecord{Store: "counter", Provider: "p1", Seq: 1, Action: "increment"},
		store.DispatchRecord{Store: "theme", Provider: "p2", Seq: 1, Action: "toggle"},
	)
	write("a",
		store.DispatchRecord{Store: "counter", Provider: "p3", Seq: 1, Action: "increment"},
		store.DispatchRecord{Store: "counter", Provider: "p3", Seq: 2, Action: "reset"},
	)

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	all, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	var order []string
	for _, r := range all {
		order = append(order, r.Session+"/"+r.Action)
	}
	assert.Equal(t, []string{"a/increment", "a/reset", "b/increment", "b/toggle"}, order)

	counter, err := j.List(ctx, Filter{Store: "counter", Action: "increment"})
	require.NoError(t, err)
	assert.Len(t, counter, 2)

	limited, err := j.List(ctx, Filter{Session: "a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "increment", limited[0].Action)

	none, err := j.List(ctx, Filter{Provider: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, sessions)
}

func TestJournalRecordsLiveDispatches(t *testing.T) {
	j := openTestJournal(t, WithSession("live"))
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.New(
		value.Object{"label": value.String(""), "count": value.Int(0)},
		store.Mutations{
			"setLabel": mutate.Set("label"),
			"nothing":  func(value.Object, ...value.Value) value.Value { return nil },
		},
		store.WithName("counter"),
		store.WithLogger(quiet),
		store.WithRecorder(j),
		store.WithIDGenerator(store.NewFixedGenerator("provider-1")),
	)
	require.NoError(t, err)

	var actions store.Actions
	root := host.NewRoot(host.WithLogger(quiet))
	_, err = root.Mount(s.Provider(host.Component{Name: "c", Render: func(r *host.Render) {
		_, actions = s.UseStore(r)
	}}))
	require.NoError(t, err)

	actions.Must("setLabel")(value.String("busy"))
	actions.Must("nothing")()

	records, err := j.List(context.Background(), Filter{Store: "counter"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "provider-1", records[0].Provider)
	assert.Equal(t, int64(1), records[0].Seq)
	assert.Equal(t, []string{"label"}, records[0].Changed)
	assert.Equal(t, value.Array{value.String("busy")}, records[0].Payload)
	assert.Equal(t,
		value.MustFingerprint(value.Object{"label": value.String("busy"), "count": value.Int(0)}),
		records[0].Fingerprint)

	assert.Equal(t, int64(2), records[1].Seq)
	assert.True(t, records[1].Noop)
	assert.Equal(t, records[0].Fingerprint, records[1].Fingerprint)
}
