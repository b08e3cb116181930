package kv

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/GophShop/internal/client/diag"
)

// fakeSecureStore is an in-memory SecureItemStore with injectable failures.
type fakeSecureStore struct {
	mu     sync.Mutex
	items  map[string]string
	setErr error
	getErr error
	sets   int
}

func newFakeSecureStore() *fakeSecureStore {
	return &fakeSecureStore{items: map[string]string{}}
}

func (f *fakeSecureStore) GetItem(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fakeSecureStore) SetItem(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.items[key] = value
	return nil
}

func (f *fakeSecureStore) backupMap(t *testing.T) map[string]string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	if raw, ok := f.items[BackupKey]; ok {
		require.NoError(t, json.Unmarshal([]byte(raw), &out))
	}
	return out
}

func TestMemoryStore_MirrorsEveryMutation(t *testing.T) {
	backup := newFakeSecureStore()
	rep := diag.New(nil)
	m := NewMemoryStore(backup, rep)

	require.NoError(t, m.Set("a", "1"))
	require.NoError(t, m.Set("b", "2"))
	require.NoError(t, m.Delete("a"))
	rep.Wait()

	assert.Equal(t, map[string]string{"b": "2"}, backup.backupMap(t))

	require.NoError(t, m.ClearAll())
	rep.Wait()
	assert.Empty(t, backup.backupMap(t))
	assert.Empty(t, m.Keys())
}

func TestMemoryStore_MirrorFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rep := diag.New(zap.New(core))
	backup := newFakeSecureStore()
	backup.setErr = errors.New("keychain locked")
	m := NewMemoryStore(backup, rep)

	err := m.Set(KeyAuthToken, "tok")
	rep.Wait()

	require.NoError(t, err)
	v, ok := m.GetString(KeyAuthToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	entries := logs.FilterField(zap.String("task", "kv.mirror")).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "keychain locked")
}

func TestMemoryStore_RestoreLoadsBackup(t *testing.T) {
	backup := newFakeSecureStore()
	backup.items[BackupKey] = `{"auth_token":"old","user_data":"{}"}`

	m := NewMemoryStore(backup, diag.New(nil))
	require.NoError(t, m.Restore(context.Background()))

	assert.Equal(t, []string{KeyAuthToken, KeyUserData}, m.Keys())
	v, _ := m.GetString(KeyAuthToken)
	assert.Equal(t, "old", v)
}

func TestMemoryStore_RestoreKeepsNewerWrites(t *testing.T) {
	backup := newFakeSecureStore()
	backup.items[BackupKey] = `{"auth_token":"old","user_data":"stale","react_query_cache":"snap"}`

	rep := diag.New(nil)
	m := NewMemoryStore(backup, rep)
	require.NoError(t, m.Set(KeyAuthToken, "new"))
	require.NoError(t, m.Delete(KeyUserData))
	rep.Wait()
	// the mirror already replaced the backup; put the older image back
	backup.items[BackupKey] = `{"auth_token":"old","user_data":"stale","react_query_cache":"snap"}`

	require.NoError(t, m.Restore(context.Background()))

	v, _ := m.GetString(KeyAuthToken)
	assert.Equal(t, "new", v)
	assert.False(t, m.Contains(KeyUserData))
	assert.True(t, m.Contains(KeyQueryCache))
}

func TestMemoryStore_RestoreAfterClearIsNoop(t *testing.T) {
	backup := newFakeSecureStore()
	backup.getErr = nil
	m := NewMemoryStore(nil, nil)
	m.backup = backup
	require.NoError(t, m.ClearAll())
	backup.items[BackupKey] = `{"auth_token":"old"}`

	require.NoError(t, m.Restore(context.Background()))
	assert.Empty(t, m.Keys())
}

func TestMemoryStore_RestoreErrors(t *testing.T) {
	backup := newFakeSecureStore()
	backup.items[BackupKey] = `not json`
	m := NewMemoryStore(backup, nil)
	assert.ErrorIs(t, m.Restore(context.Background()), ErrMalformed)

	backup.getErr = errors.New("io")
	assert.Error(t, m.Restore(context.Background()))

	empty := NewMemoryStore(newFakeSecureStore(), nil)
	assert.NoError(t, empty.Restore(context.Background()))
}
