package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/GophShop/internal/client/diag"
)

func TestOpen_PrefersEncryptedStore(t *testing.T) {
	s := Open(Options{DataDir: t.TempDir(), Passphrase: "p"}, newFakeSecureStore(), diag.New(nil), nil)
	defer s.Close()
	_, ok := s.(*EncryptedStore)
	assert.True(t, ok)
}

func TestOpen_FallsBackAndRestores(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)
	rep := diag.New(log)

	backup := newFakeSecureStore()
	backup.items[BackupKey] = `{"auth_token":"from-backup"}`

	s := Open(Options{DataDir: t.TempDir()}, backup, rep, log)
	rep.Wait()

	_, ok := s.(*MemoryStore)
	require.True(t, ok)
	v, ok := s.GetString(KeyAuthToken)
	assert.True(t, ok)
	assert.Equal(t, "from-backup", v)
	assert.Equal(t, 1, logs.FilterMessage("encrypted storage unavailable, using memory store").Len())
}

func TestOpen_FallbackSurvivesRestart(t *testing.T) {
	backupDir := t.TempDir()
	rep := diag.New(nil)

	first := Open(Options{}, NewFileSecureStore(backupDir), rep, nil)
	require.NoError(t, first.Set(KeyAuthToken, "tok"))
	rep.Wait()

	second := Open(Options{}, NewFileSecureStore(backupDir), rep, nil)
	rep.Wait()
	v, ok := second.GetString(KeyAuthToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestObjects(t *testing.T) {
	s := NewMemoryStore(nil, nil)

	type user struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, SetObject(s, KeyUserData, user{ID: 1, Name: "a"}))

	var got user
	require.NoError(t, GetObject(s, KeyUserData, &got))
	assert.Equal(t, user{ID: 1, Name: "a"}, got)

	assert.ErrorIs(t, GetObject(s, "missing", &got), ErrNotFound)

	require.NoError(t, s.Set(KeyUserData, "{broken"))
	assert.ErrorIs(t, GetObject(s, KeyUserData, &got), ErrMalformed)

	require.NoError(t, s.Set(KeyUserData, ""))
	assert.ErrorIs(t, GetObject(s, KeyUserData, &got), ErrNotFound)
}

func TestFileSecureStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "secure")
	f := NewFileSecureStore(dir)
	ctx := context.Background()

	_, err := f.GetItem(ctx, BackupKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.SetItem(ctx, BackupKey, "v1"))
	require.NoError(t, f.SetItem(ctx, BackupKey, "v2"))
	v, err := f.GetItem(ctx, BackupKey)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	info, err := os.Stat(filepath.Join(dir, BackupKey))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files left behind")

	assert.Error(t, f.SetItem(ctx, "../escape", "x"))
	_, err = f.GetItem(ctx, "a/b")
	assert.Error(t, err)
}
