package state

import (
	"context"
	"testing"
	"time"
)

type memStore struct {
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func TestCycleSnapshotRoundTrip(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	in := CycleSnapshot{
		Cycle:       42,
		Phase:       "BUILDING",
		Safety:      "NORMAL",
		Positions:   map[string]string{"grvt": "0.3", "lighter": "-0.3"},
		AnnualRates: map[string]string{"grvt": "0.1095", "lighter": "4.38"},
		NetExposure: "0",
		UpdatedAtMS: time.Now().UnixMilli(),
	}
	if err := SaveCycleSnapshot(ctx, store, in); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	out, ok, err := LoadCycleSnapshot(ctx, store)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if out.Cycle != 42 || out.Phase != "BUILDING" || out.Positions["lighter"] != "-0.3" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestLoadCycleSnapshotMissing(t *testing.T) {
	_, ok, err := LoadCycleSnapshot(context.Background(), newMemStore())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ok {
		t.Fatal("expected no snapshot")
	}
}

func TestLastSizeChangePersistence(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	got, err := LoadLastSizeChange(ctx, store)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("missing key must read as zero time, got %s", got)
	}

	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := SaveLastSizeChange(ctx, store, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err = LoadLastSizeChange(ctx, store)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	ctx := context.Background()
	if err := SaveCycleSnapshot(ctx, nil, CycleSnapshot{}); err != nil {
		t.Fatalf("nil store save: %v", err)
	}
	if _, ok, err := LoadCycleSnapshot(ctx, nil); err != nil || ok {
		t.Fatalf("nil store load: ok=%v err=%v", ok, err)
	}
}
