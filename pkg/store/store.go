// Package store persists small JSON documents (logos, templates, history
// sessions) under string keys.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var (
	// ErrNotFound is returned by Load for keys that were never saved.
	ErrNotFound = errors.New("key not found")
	// ErrTooLarge is returned by Save when a value exceeds the store's quota.
	ErrTooLarge = errors.New("value exceeds quota")
)

// Store loads and saves JSON-encodable values.
type Store interface {
	Load(ctx context.Context, key string, v any) error
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore keeps one JSON file per key in a directory.
type FileStore struct {
	Dir string
	// MaxBytes rejects encoded values above this size when non-zero.
	MaxBytes int
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, unsafeKey.ReplaceAllString(key, "_")+".json")
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, key string, v any) error {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return nil
}

// Save implements Store. Values are written to a temporary file and renamed
// into place so readers never observe a partial document.
func (s *FileStore) Save(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	if s.MaxBytes > 0 && len(b) > s.MaxBytes {
		return fmt.Errorf("save %q (%d bytes): %w", key, len(b), ErrTooLarge)
	}

	tmp, err := os.CreateTemp(s.Dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}
