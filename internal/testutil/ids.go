package testutil

import (
	"fmt"
	"io"
	"log/slog"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... and never runs
// out, unlike store.FixedGenerator. Scenarios that remount providers get
// the same IDs on every run.
//
// Implements store.IDGenerator.
type SequentialIDs struct {
	prefix string
	clock  *DeterministicClock
}

// NewSequentialIDs creates a generator. An empty prefix becomes "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix, clock: NewDeterministicClock()}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.clock.Next())
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.clock.Reset()
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
