package installer

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	root := t.TempDir()

	lock, err := AcquireLock(root, "renode")
	require.NoError(t, err)

	data, err := os.ReadFile(LockPath(root, "renode"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "pid=")
	assert.Contains(t, string(data), "token="+lock.Token())

	_, err = AcquireLock(root, "renode")
	require.ErrorIs(t, err, ErrLocked)

	other, err := AcquireLock(root, "openocd")
	require.NoError(t, err, "locks are per tool")
	require.NoError(t, other.Release())

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, LockPath(root, "renode"))
	require.NoError(t, lock.Release(), "release is idempotent")
}

func TestAcquireLock_ReplacesStaleLock(t *testing.T) {
	root := t.TempDir()
	path := LockPath(root, "renode")
	require.NoError(t, os.WriteFile(path, []byte("pid=1\n"), 0o600))

	old := time.Now().Add(-2 * StaleLockThreshold)
	require.NoError(t, os.Chtimes(path, old, old))

	lock, err := AcquireLock(root, "renode")
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), lock.Token()))
}

func TestAcquireLock_CreatesRoot(t *testing.T) {
	root := t.TempDir() + "/missing/root"

	lock, err := AcquireLock(root, "tool")
	require.NoError(t, err)
	defer lock.Release()

	assert.DirExists(t, root)
}
