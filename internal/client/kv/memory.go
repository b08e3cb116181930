package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/atinyakov/GophShop/internal/client/diag"
)

// MemoryStore keeps values in process memory and mirrors every mutation, in
// the background, to a SecureItemStore so that a restart can recover them.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]string
	touched map[string]struct{}
	cleared bool
	seq     uint64

	backup SecureItemStore
	rep    *diag.Reporter

	mirrorMu sync.Mutex
	mirrored uint64
}

// NewMemoryStore returns an empty MemoryStore. backup may be nil, in which
// case nothing is mirrored.
func NewMemoryStore(backup SecureItemStore, rep *diag.Reporter) *MemoryStore {
	if rep == nil {
		rep = diag.New(nil)
	}
	return &MemoryStore{
		items:   make(map[string]string),
		touched: make(map[string]struct{}),
		backup:  backup,
		rep:     rep,
	}
}

// Set stores value under key. It never fails.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	m.items[key] = value
	m.touched[key] = struct{}{}
	seq, snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(seq, snap)
	return nil
}

// GetString returns the value under key.
func (m *MemoryStore) GetString(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.touched[key] = struct{}{}
	seq, snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(seq, snap)
	return nil
}

// Contains reports whether key is present.
func (m *MemoryStore) Contains(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok
}

// ClearAll removes every key.
func (m *MemoryStore) ClearAll() error {
	m.mu.Lock()
	m.items = make(map[string]string)
	m.cleared = true
	seq, snap := m.snapshotLocked()
	m.mu.Unlock()

	m.mirror(seq, snap)
	return nil
}

// Keys lists every key in lexical order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Restore loads the mirrored map from the backup store. Keys written, deleted
// or cleared since the store was created keep their current state.
func (m *MemoryStore) Restore(ctx context.Context) error {
	if m.backup == nil {
		return nil
	}
	raw, err := m.backup.GetItem(ctx, BackupKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore from secure store: %w", err)
	}

	var saved map[string]string
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return fmt.Errorf("%w: backup: %w", ErrMalformed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cleared {
		return nil
	}
	for k, v := range saved {
		if _, ok := m.touched[k]; ok {
			continue
		}
		m.items[k] = v
	}
	return nil
}

// snapshotLocked must be called with mu held.
func (m *MemoryStore) snapshotLocked() (uint64, map[string]string) {
	m.seq++
	snap := make(map[string]string, len(m.items))
	for k, v := range m.items {
		snap[k] = v
	}
	return m.seq, snap
}

func (m *MemoryStore) mirror(seq uint64, snap map[string]string) {
	if m.backup == nil {
		return
	}
	m.rep.Go("kv.mirror", func(ctx context.Context) error {
		m.mirrorMu.Lock()
		defer m.mirrorMu.Unlock()
		if seq <= m.mirrored {
			// a newer snapshot already landed
			return nil
		}
		b, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode backup: %w", err)
		}
		if err := m.backup.SetItem(ctx, BackupKey, string(b)); err != nil {
			return fmt.Errorf("mirror to secure store: %w", err)
		}
		m.mirrored = seq
		return nil
	})
}
