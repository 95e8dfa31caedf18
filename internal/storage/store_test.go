package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/tablebook/tablebook/internal/kv"
	"github.com/tablebook/tablebook/internal/model"
)

// memKV is an in-memory medium with an optional per-write size cap,
// used to provoke quota recovery deterministically.
type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	maxSize int // 0 = unlimited; Set fails with ErrQuotaExceeded above this
	sets    int
}

func newMemKV(maxSize int) *memKV {
	return &memKV{data: map[string]string{}, maxSize: maxSize}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.maxSize > 0 && len(value) > m.maxSize {
		return kv.ErrQuotaExceeded
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestInitializeWritesDefaultBlobOnce(t *testing.T) {
	ctx := context.Background()
	medium := newMemKV(0)
	s := New(medium)

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	raw, err := medium.Get(ctx, BlobKey)
	if err != nil {
		t.Fatalf("blob not written: %v", err)
	}
	want := `{"reservations":[],"users":[],"settings":{}}`
	if raw != want {
		t.Errorf("default blob = %s, want %s", raw, want)
	}

	// A second Initialize must not clobber existing data.
	if _, err := s.Update(ctx, func(b *Blob) {
		b.Reservations = append(b.Reservations, model.Reservation{ID: "r1"})
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if got := len(s.Read(ctx).Reservations); got != 1 {
		t.Errorf("reservations after re-initialize = %d, want 1", got)
	}
}

func TestReadCorruptedBlobReturnsDefaults(t *testing.T) {
	ctx := context.Background()
	medium := newMemKV(0)
	if err := medium.Set(ctx, BlobKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	s := New(medium)

	b := s.Read(ctx)
	if len(b.Reservations) != 0 || len(b.Users) != 0 || len(b.Settings) != 0 {
		t.Errorf("corrupted blob read = %+v, want empty collections", b)
	}
	// Read must not persist the default back.
	if raw, _ := medium.Get(ctx, BlobKey); raw != "{not json" {
		t.Errorf("Read rewrote storage to %q", raw)
	}
}

func TestReadCoercesMalformedCollectionsIndependently(t *testing.T) {
	ctx := context.Background()
	medium := newMemKV(0)
	raw := `{"reservations":{"oops":true},"users":[{"id":"u1","name":"Al","email":"al@example.com"}],"settings":{"theme":"dark"}}`
	if err := medium.Set(ctx, BlobKey, raw); err != nil {
		t.Fatal(err)
	}
	s := New(medium)

	b := s.Read(ctx)
	if len(b.Reservations) != 0 {
		t.Errorf("malformed reservations coerced to %v, want empty", b.Reservations)
	}
	if len(b.Users) != 1 || b.Users[0].ID != "u1" {
		t.Errorf("users collection lost: %+v", b.Users)
	}
	if b.Settings["theme"] != "dark" {
		t.Errorf("settings lost: %+v", b.Settings)
	}
}

func TestWriteQuotaRecoveryKeepsNewestFifty(t *testing.T) {
	ctx := context.Background()
	big := Blob{Settings: map[string]any{}}
	for i := 0; i < 60; i++ {
		big.Reservations = append(big.Reservations, model.Reservation{ID: fmt.Sprintf("res-%d", i)})
	}
	full, err := json.Marshal(normalize(big))
	if err != nil {
		t.Fatal(err)
	}

	// Cap the medium so the 60-record document fails but 50 fit.
	medium := newMemKV(len(full) - 1)
	s := New(medium)
	if err := s.Write(ctx, big); err != nil {
		t.Fatalf("Write with recovery: %v", err)
	}
	if medium.sets != 2 {
		t.Errorf("set attempts = %d, want 2 (initial + one retry)", medium.sets)
	}

	got := s.Read(ctx).Reservations
	if len(got) != recoveryKeep {
		t.Fatalf("recovered reservations = %d, want %d", len(got), recoveryKeep)
	}
	if got[0].ID != "res-10" || got[len(got)-1].ID != "res-59" {
		t.Errorf("recovery kept %s..%s, want res-10..res-59", got[0].ID, got[len(got)-1].ID)
	}
}

func TestWriteQuotaRecoveryFailureIsReported(t *testing.T) {
	ctx := context.Background()
	medium := newMemKV(1) // nothing fits, even after truncation
	s := New(medium)

	b := Blob{Reservations: []model.Reservation{{ID: "r1"}}}
	if err := s.Write(ctx, b); err == nil {
		t.Error("Write = nil, want error when recovery also fails")
	}
	if medium.sets != 2 {
		t.Errorf("set attempts = %d, want 2 (no further retries)", medium.sets)
	}
}
