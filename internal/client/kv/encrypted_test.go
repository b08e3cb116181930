package kv

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenEncrypted(dir, "pass", nil)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyAuthToken, "tok-1"))
	require.NoError(t, s.Set(KeyUserData, `{"id":1}`))
	require.NoError(t, s.Set(KeyAuthToken, "tok-2"))

	v, ok := s.GetString(KeyAuthToken)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v)
	assert.True(t, s.Contains(KeyUserData))
	assert.Equal(t, []string{KeyAuthToken, KeyUserData}, s.Keys())

	require.NoError(t, s.Delete(KeyUserData))
	assert.False(t, s.Contains(KeyUserData))
	_, ok = s.GetString(KeyUserData)
	assert.False(t, ok)
	require.NoError(t, s.Delete("never-set"))
	require.NoError(t, s.Close())

	reopened, err := OpenEncrypted(dir, "pass", nil)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok = reopened.GetString(KeyAuthToken)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v)

	require.NoError(t, reopened.ClearAll())
	assert.Empty(t, reopened.Keys())
}

func TestEncryptedStore_ValuesAreOpaqueOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenEncrypted(dir, "pass", nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyAuthToken, "very-secret-bearer-token"))
	require.NoError(t, s.Close())

	var found bool
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		if bytes.Contains(data, []byte("very-secret-bearer-token")) {
			found = true
		}
	}
	assert.False(t, found, "plaintext leaked to disk")
}

func TestEncryptedStore_WrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenEncrypted(dir, "right", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenEncrypted(dir, "wrong", nil)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestOpenEncrypted_RequiresPassphraseAndDir(t *testing.T) {
	_, err := OpenEncrypted(t.TempDir(), "", nil)
	assert.Error(t, err)

	_, err = OpenEncrypted("", "pass", nil)
	assert.Error(t, err)
}
