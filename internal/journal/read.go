package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/statebox/internal/value"
)

// Record is one journaled dispatch.
type Record struct {
	ID          int64
	Session     string
	Store       string
	Provider    string
	Seq         int64
	Action      string
	Payload     value.Array
	Changed     []string
	Fingerprint string
	Noop        bool
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Session  string
	Store    string
	Provider string
	Action   string
	// Limit caps the number of records; zero means no limit.
	Limit int
}

// List returns matching records in write order (session, then id).
// Returns an empty slice, not nil, when nothing matches.
func (j *Journal) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, v string) {
		if v != "" {
			where = append(where, column+" = ?")
			args = append(args, v)
		}
	}
	add("session", f.Session)
	add("store", f.Store)
	add("provider", f.Provider)
	add("action", f.Action)

	query := `
		SELECT id, session, store, provider, seq, action, payload, changed, fingerprint, noop
		FROM dispatches`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY session COLLATE BINARY ASC, id ASC"
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return records, nil
}

// Sessions returns the distinct session IDs in the journal, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session FROM dispatches
		GROUP BY session
		ORDER BY MIN(id) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec              Record
		payload, changed string
	)
	err := rows.Scan(&rec.ID, &rec.Session, &rec.Store, &rec.Provider, &rec.Seq,
		&rec.Action, &payload, &changed, &rec.Fingerprint, &rec.Noop)
	if err != nil {
		return Record{}, fmt.Errorf("scan dispatch: %w", err)
	}

	var arr value.Array
	if err := json.Unmarshal([]byte(payload), &arr); err != nil {
		return Record{}, fmt.Errorf("unmarshal payload of dispatch %d: %w", rec.ID, err)
	}
	rec.Payload = arr

	if err := json.Unmarshal([]byte(changed), &rec.Changed); err != nil {
		return Record{}, fmt.Errorf("unmarshal changed keys of dispatch %d: %w", rec.ID, err)
	}
	return rec, nil
}
