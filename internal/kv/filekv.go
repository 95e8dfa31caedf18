package kv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists each key as one JSON file inside a data directory.
// It is the default medium when Redis is not configured.  A byte quota
// bounds the total size of all stored values; writes that would push
// the directory past the quota fail with ErrQuotaExceeded so that the
// storage layer can run its truncation recovery.
type FileStore struct {
	dir   string
	quota int64 // total byte budget across all keys; <=0 disables the check
	mu    sync.Mutex
}

// NewFileStore creates the data directory if needed and returns a store
// rooted at dir with the given byte quota.
func NewFileStore(dir string, quotaBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, quota: quotaBytes}, nil
}

// path maps a key to a file name.  Keys are simple fixed identifiers
// ("reservations_db", "user"); separators are flattened defensively.
func (f *FileStore) path(key string) string {
	name := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(key)
	return filepath.Join(f.dir, name+".json")
}

// Get reads the value stored under key.
func (f *FileStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(b), nil
}

// Set writes the value under key atomically (temp file + rename).  The
// quota is checked against the directory size with the key's previous
// value excluded, so rewriting an existing key never double-counts it.
func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.path(key)
	if f.quota > 0 {
		used, err := f.usedBytes(target)
		if err != nil {
			return err
		}
		if used+int64(len(value)) > f.quota {
			return ErrQuotaExceeded
		}
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Delete removes the key's file.  Absence is not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// usedBytes sums the sizes of all stored values except the file being
// replaced.
func (f *FileStore) usedBytes(except string) (int64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(f.dir, e.Name())
		if p == except || strings.HasSuffix(p, ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
