package state

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const (
	// CycleSnapshotKey holds the JSON summary of the last completed cycle.
	CycleSnapshotKey = "cycle:last_snapshot"
	// LastSizeChangeKey holds the timestamp of the last size-changing fill.
	// It survives restarts so the hold timer does not reset on a crash.
	LastSizeChangeKey = "cycle:last_size_change"
)

// CycleSnapshot is the persisted summary of one control-loop cycle.
// Quantities are stored as decimal strings keyed by exchange id.
type CycleSnapshot struct {
	Cycle        uint64            `json:"cycle"`
	Phase        string            `json:"phase"`
	Safety       string            `json:"safety"`
	SafetyReason string            `json:"safety_reason,omitempty"`
	Halted       bool              `json:"halted"`
	Positions    map[string]string `json:"positions,omitempty"`
	AnnualRates  map[string]string `json:"annual_rates,omitempty"`
	NetExposure  string            `json:"net_exposure"`
	UpdatedAtMS  int64             `json:"updated_at_ms"`
}

func LoadCycleSnapshot(ctx context.Context, store Store) (CycleSnapshot, bool, error) {
	if store == nil {
		return CycleSnapshot{}, false, nil
	}
	raw, ok, err := store.Get(ctx, CycleSnapshotKey)
	if err != nil {
		return CycleSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return CycleSnapshot{}, false, nil
	}
	var snapshot CycleSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return CycleSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveCycleSnapshot(ctx context.Context, store Store, snapshot CycleSnapshot) error {
	if store == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, CycleSnapshotKey, string(payload))
}

// LoadLastSizeChange returns the persisted hold-timer anchor. A missing or
// unparsable value reads as the zero time, which the phase tracker treats as
// an elapsed timer.
func LoadLastSizeChange(ctx context.Context, store Store) (time.Time, error) {
	if store == nil {
		return time.Time{}, nil
	}
	raw, ok, err := store.Get(ctx, LastSizeChangeKey)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return ts, nil
}

func SaveLastSizeChange(ctx context.Context, store Store, ts time.Time) error {
	if store == nil {
		return nil
	}
	return store.Set(ctx, LastSizeChangeKey, ts.UTC().Format(time.RFC3339Nano))
}
