package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
)

// LockFile is created in the state directory for the duration of a run.
const LockFile = ".lock"

// acquireLock refuses to start while another run holds the state directory.
// The returned func releases the lock.
func acquireLock(stateDir string) (func(), error) {
	if err := appFS.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	path := filepath.Join(stateDir, LockFile)
	f, err := appFS.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, fs.ErrExist) {
		owner := "unknown"
		if data, readErr := afero.ReadFile(appFS, path); readErr == nil && len(data) > 0 {
			owner = string(data)
		}
		return nil, fmt.Errorf("another k8solo run holds %s (pid %s); remove the file if no run is active", path, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	_, writeErr := f.WriteString(strconv.Itoa(os.Getpid()))
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = appFS.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	return func() { _ = appFS.Remove(path) }, nil
}
