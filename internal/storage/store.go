// Package storage implements the persisted store: a single JSON blob
// holding the reservations, users and settings collections, kept under
// one fixed key in the durable key-value medium.  The blob is treated
// as untrusted input on every read because the medium is finite,
// shared, and can be corrupted out-of-band.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/tablebook/tablebook/internal/kv"
	"github.com/tablebook/tablebook/internal/model"
)

// BlobKey is the fixed key the blob lives under.
const BlobKey = "reservations_db"

// recoveryKeep is how many of the newest reservations survive the
// quota recovery pass.
const recoveryKeep = 50

// Blob is the durable document.  All three collections are always
// present; a missing or malformed collection is coerced to its typed
// default, never surfaced as an error.
type Blob struct {
	Reservations []model.Reservation `json:"reservations"`
	Users        []model.User        `json:"users"`
	Settings     map[string]any      `json:"settings"`
}

// defaultBlob returns the empty-collections shape written on first use
// and returned whenever the stored value cannot be trusted.
func defaultBlob() Blob {
	return Blob{
		Reservations: []model.Reservation{},
		Users:        []model.User{},
		Settings:     map[string]any{},
	}
}

// Store owns the blob lifecycle.  Every mutation is a full
// read-modify-write of the entire document, serialized by the mutex;
// there is no finer-grained locking and no cross-process coordination
// (last write wins at blob granularity).
type Store struct {
	kv kv.Store
	mu sync.Mutex
}

// New returns a Store over the given medium.  Call Initialize once
// before any other operation.
func New(medium kv.Store) *Store { return &Store{kv: medium} }

// Initialize writes the default blob if none exists.  It is idempotent
// and never overwrites an existing value.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.kv.Get(ctx, BlobKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	return s.persist(ctx, defaultBlob())
}

// Read returns the current blob.  A missing or unparsable value yields
// the default blob, logged but never raised; the default is not
// written back.
func (s *Store) Read(ctx context.Context) Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Write serializes and persists the full blob.  On quota exhaustion it
// truncates the reservations collection to the newest recoveryKeep
// entries and retries once; if that also fails the error is returned
// so the caller can log it, but callers must not assume durability
// succeeded either way.
func (s *Store) Write(ctx context.Context, b Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, b)
}

// Update applies fn to the current blob under the store lock and
// persists the result, returning the blob as mutated.  This is the
// read-modify-write entry point used by the repositories.
func (s *Store) Update(ctx context.Context, fn func(*Blob)) (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.read(ctx)
	fn(&b)
	return b, s.persist(ctx, b)
}

// read loads and validates the blob.  Callers must hold s.mu.
func (s *Store) read(ctx context.Context) Blob {
	raw, err := s.kv.Get(ctx, BlobKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Printf("storage: read failed: %v", err)
		}
		return defaultBlob()
	}
	return decode(raw)
}

// persist marshals and writes the blob, running the quota recovery
// pass when the first attempt fails with ErrQuotaExceeded.  Callers
// must hold s.mu.
func (s *Store) persist(ctx context.Context, b Blob) error {
	data, err := json.Marshal(normalize(b))
	if err != nil {
		return err
	}
	err = s.kv.Set(ctx, BlobKey, string(data))
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		return err
	}
	log.Printf("storage: quota exceeded, truncating reservations to newest %d", recoveryKeep)
	if n := len(b.Reservations); n > recoveryKeep {
		b.Reservations = b.Reservations[n-recoveryKeep:]
	}
	data, err = json.Marshal(normalize(b))
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, BlobKey, string(data)); err != nil {
		log.Printf("storage: recovery write failed: %v", err)
		return err
	}
	return nil
}

// rawBlob splits the document so each collection can be validated
// independently: one malformed collection is coerced to its default
// without discarding the others.
type rawBlob struct {
	Reservations json.RawMessage `json:"reservations"`
	Users        json.RawMessage `json:"users"`
	Settings     json.RawMessage `json:"settings"`
}

// decode parses the stored value with per-collection shape checks.
func decode(raw string) Blob {
	var r rawBlob
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		log.Printf("storage: corrupted blob, using defaults: %v", err)
		return defaultBlob()
	}
	b := defaultBlob()
	if len(r.Reservations) > 0 {
		var rs []model.Reservation
		if err := json.Unmarshal(r.Reservations, &rs); err != nil {
			log.Printf("storage: malformed reservations collection, coercing to empty: %v", err)
		} else if rs != nil {
			b.Reservations = rs
		}
	}
	if len(r.Users) > 0 {
		var us []model.User
		if err := json.Unmarshal(r.Users, &us); err != nil {
			log.Printf("storage: malformed users collection, coercing to empty: %v", err)
		} else if us != nil {
			b.Users = us
		}
	}
	if len(r.Settings) > 0 {
		var m map[string]any
		if err := json.Unmarshal(r.Settings, &m); err != nil {
			log.Printf("storage: malformed settings, coercing to empty: %v", err)
		} else if m != nil {
			b.Settings = m
		}
	}
	return b
}

// normalize replaces nil collections with their typed defaults so the
// persisted document always carries all three fields.
func normalize(b Blob) Blob {
	if b.Reservations == nil {
		b.Reservations = []model.Reservation{}
	}
	if b.Users == nil {
		b.Users = []model.User{}
	}
	if b.Settings == nil {
		b.Settings = map[string]any{}
	}
	return b
}
