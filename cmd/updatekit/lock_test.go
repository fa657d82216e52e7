package main

import (
	"testing"

	apperrors "updatekit/internal/errors"
)

func TestSessionLockIsExclusive(t *testing.T) {
	setupTestEnv(t)

	first, err := acquireSessionLock()
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := acquireSessionLock(); !apperrors.IsCode(err, apperrors.CodeSessionLocked) {
		t.Fatalf("expected session_locked while held, got %v", err)
	}
	if exitCodeFor(apperrors.New(apperrors.CodeSessionLocked, "held", nil)) != 3 {
		t.Error("session_locked should exit with 3")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	second, err := acquireSessionLock()
	if err != nil {
		t.Fatalf("acquire after unlock: %v", err)
	}
	_ = second.Unlock()
}
