package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

const pidFile = "monitorctl.pid"

func path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to the PID file. A file left by
// a dead process is overwritten; a live owner makes this an error.
func Write() error {
	errFactory := errors.New()

	if _, err := os.Stat(path()); err == nil {
		raw, err := os.ReadFile(path())
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		owner, err := strconv.Atoi(string(raw))
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		process, err := os.FindProcess(owner)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		if err := process.Signal(syscall.Signal(0)); err == nil {
			return errFactory.WithData(errors.ErrAlreadyRunning, owner)
		}
	}

	if err := os.WriteFile(path(), []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func Remove() error {
	errFactory := errors.New()

	if _, err := os.Stat(path()); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path()); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
