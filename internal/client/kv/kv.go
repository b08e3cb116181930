// Package kv provides the client's persisted key-value store: an encrypted
// on-disk store, with an in-memory fallback mirrored to a secure item store
// when the disk store cannot be opened.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/diag"
	"github.com/atinyakov/GophShop/internal/logger"
)

// Persisted key layout.
const (
	KeyAuthToken  = "auth_token"
	KeyUserData   = "user_data"
	KeyQueryCache = "react_query_cache"

	// Reserved, not read by the current core.
	KeyLockState        = "lock_state"
	KeyLastActivity     = "last_activity"
	KeyBiometricEnabled = "biometric_enabled"

	// BackupKey is the secure-store item holding the fallback map.
	BackupKey = "kv_backup_v1"
)

var (
	// ErrNotFound is returned when a key or secure item is absent.
	ErrNotFound = errors.New("kv: not found")
	// ErrMalformed marks a persisted value that failed to decode.
	ErrMalformed = errors.New("kv: malformed value")
	// ErrStorageUnavailable marks a failed primary store initialisation.
	// It is logged on fallback and never returned to callers.
	ErrStorageUnavailable = errors.New("kv: storage unavailable")
)

// Store is a synchronous string key-value store.
type Store interface {
	Set(key, value string) error
	// GetString returns the value and whether it was present.
	GetString(key string) (string, bool)
	Delete(key string) error
	Contains(key string) bool
	ClearAll() error
	Keys() []string
	Close() error
}

// Options configures the primary encrypted store.
type Options struct {
	// DataDir holds storage.db.
	DataDir string
	// Passphrase derives the encryption key. Empty disables the primary store.
	Passphrase string
}

// Open returns the encrypted store when it can be opened. Otherwise it falls
// back to a MemoryStore mirrored to backup and starts one detached restore
// from backup.
//
// Until that restore finishes, callers may see keys as missing that a
// previous run had written. That window is accepted: the restore never
// overwrites keys written, deleted or cleared after startup.
func Open(opts Options, backup SecureItemStore, rep *diag.Reporter, log *zap.Logger) Store {
	log = logger.OrNop(log)
	s, err := OpenEncrypted(opts.DataDir, opts.Passphrase, log)
	if err == nil {
		return s
	}
	log.Warn("encrypted storage unavailable, using memory store",
		zap.Error(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)))

	m := NewMemoryStore(backup, rep)
	if backup != nil {
		rep.Go("kv.restore", m.Restore)
	}
	return m
}

// SetObject stores v as JSON under key.
func SetObject(s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(key, string(b))
}

// GetObject decodes the JSON stored under key into dst. It returns ErrNotFound
// for a missing or empty value and an error wrapping ErrMalformed when the
// value does not decode.
func GetObject(s Store, key string, dst any) error {
	raw, ok := s.GetString(key)
	if !ok || raw == "" {
		return ErrNotFound
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrMalformed, key, err)
	}
	return nil
}
