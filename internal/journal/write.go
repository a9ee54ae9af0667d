package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/statebox/internal/store"
	"github.com/roach88/statebox/internal/value"
)

var _ store.Recorder = (*Journal)(nil)

// RecordDispatch implements store.Recorder.
// Payloads are stored as canonical JSON. A duplicate (session, provider,
// seq) is ignored.
func (j *Journal) RecordDispatch(ctx context.Context, rec store.DispatchRecord) error {
	payload, err := marshalPayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	changed, err := marshalChanged(rec.Changed)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(session, store, provider, seq, action, payload, changed, fingerprint, noop)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, provider, seq) DO NOTHING
	`,
		j.session,
		rec.Store,
		rec.Provider,
		rec.Seq,
		rec.Action,
		payload,
		changed,
		rec.Fingerprint,
		rec.Noop,
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

func marshalPayload(payload []value.Value) (string, error) {
	arr := value.Array(payload)
	if arr == nil {
		arr = value.Array{}
	}
	data, err := value.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func marshalChanged(keys []string) (string, error) {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("marshal changed keys: %w", err)
	}
	return string(data), nil
}
