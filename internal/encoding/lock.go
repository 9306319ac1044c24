package encoding

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"librarian/internal/services"
)

// RunLock guarantees a single encode run per state directory.
type RunLock struct {
	path string
	lock *flock.Flock
}

// AcquireRunLock takes the lock at path without blocking.
func AcquireRunLock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire encode lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "encode", "acquire run lock",
			fmt.Sprintf("another encode is already running (lock %s)", path), nil)
	}
	return &RunLock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks. It is safe on a nil lock.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
