package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"updatekit/internal/config"
	apperrors "updatekit/internal/errors"
)

// sessionLockPath is swapped out in tests.
var sessionLockPath = defaultSessionLockPath

func defaultSessionLockPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.lock"), nil
}

// acquireSessionLock makes this process the only update session for the
// profile. Sessions own the scheduler and the stored last-check time.
func acquireSessionLock() (*flock.Flock, error) {
	path, err := sessionLockPath()
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock update session: %w", err)
	}
	if !locked {
		return nil, apperrors.New(apperrors.CodeSessionLocked,
			"another updatekit session is running (lock held on "+path+")", nil)
	}
	return lock, nil
}
