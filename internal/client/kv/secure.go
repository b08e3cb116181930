package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// SecureItemStore is a durable store for a few small secret items, such as
// the platform keychain. It backs the MemoryStore fallback.
type SecureItemStore interface {
	// GetItem returns ErrNotFound when the item does not exist.
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
}

var itemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileSecureStore keeps one owner-only file per item in a directory. It is
// used where no platform keychain is reachable.
type FileSecureStore struct {
	dir string
}

// NewFileSecureStore returns a store rooted at dir. The directory is
// created on first write.
func NewFileSecureStore(dir string) *FileSecureStore {
	return &FileSecureStore{dir: dir}
}

func (f *FileSecureStore) path(key string) (string, error) {
	if !itemKeyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid secure item key %q", key)
	}
	return filepath.Join(f.dir, key), nil
}

// GetItem reads the item stored under key.
func (f *FileSecureStore) GetItem(_ context.Context, key string) (string, error) {
	p, err := f.path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read secure item: %w", err)
	}
	return string(data), nil
}

// SetItem replaces the item atomically: the value goes to a temp file that
// is synced and renamed over the old one.
func (f *FileSecureStore) SetItem(_ context.Context, key, value string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("create secure store dir: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write secure item: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync secure item: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close secure item: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod secure item: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("replace secure item: %w", err)
	}
	return nil
}
