package pid

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

func TestWriteDetectsLiveOwner(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	require.NoError(t, Write())

	raw, err := os.ReadFile(path())
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(raw))

	// Our own process owns the file and is obviously alive
	err = Write()
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))

	require.NoError(t, Remove())
	require.NoError(t, Write())
	require.NoError(t, Remove())
}

func TestWriteOverwritesStalePIDFile(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	// Beyond the kernel pid ceiling, so signaling it always fails
	require.NoError(t, os.WriteFile(path(), []byte("99999999"), 0o600))

	require.NoError(t, Write())

	raw, err := os.ReadFile(path())
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(raw))

	require.NoError(t, Remove())
}

func TestRemoveWithoutFileIsNoop(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	require.NoError(t, Remove())
}
