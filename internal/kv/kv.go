// Package kv abstracts the durable key-value medium that backs the
// reservation store.  Values are full serialized JSON documents; there
// are no partial or delta writes.  The medium is finite and shared, so
// every implementation must report capacity exhaustion with
// ErrQuotaExceeded to let callers attempt recovery.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists under the key.
// Callers are expected to fall back to typed defaults instead of
// treating absence as a fault.
var ErrNotFound = errors.New("kv: key not found")

// ErrQuotaExceeded is returned by Set when the medium refuses the write
// because its capacity is exhausted.  Callers may shrink the value and
// retry once; further retries are not attempted anywhere in the core.
var ErrQuotaExceeded = errors.New("kv: storage quota exceeded")

// Store is the contract for the durable medium.  Implementations must
// be safe for use from multiple goroutines.
type Store interface {
	// Get returns the serialized value under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set persists the serialized value under key, replacing any
	// previous value.  Returns ErrQuotaExceeded when the medium is full.
	Set(ctx context.Context, key, value string) error
	// Delete removes the key.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
