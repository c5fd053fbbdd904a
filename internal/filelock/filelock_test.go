package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")

	require.NoError(t, AtomicWrite(path, []byte(`{"ok":true}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicWriteReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestTryLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.lock")

	first := New(path)
	require.NoError(t, first.Lock())
	defer first.Unlock()

	second := New(path)
	acquired, err := second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestLockAndWriteRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	require.NoError(t, LockAndWrite(path, []byte("payload")))

	data, err := LockAndRead(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// The sibling lock file stays behind for the next writer.
	_, err = os.Stat(path + ".lock")
	assert.NoError(t, err)
}
