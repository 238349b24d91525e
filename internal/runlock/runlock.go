// Package runlock serializes mutating runs per partner with an advisory
// file lock, so two imports or executions for the same partner cannot
// interleave.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"dossier/internal/services"
)

// Lock holds a partner-scoped advisory lock until released.
type Lock struct {
	flock *flock.Flock
	path  string
}

// Acquire takes the partner's lock without blocking. A held lock returns a
// transient error; callers retry or report, they do not wait.
func Acquire(lockDir string, partnerID int64) (*Lock, error) {
	if partnerID <= 0 {
		return nil, services.Wrap(services.ErrInvalidScope, "runlock", "acquire", "partner id required", nil)
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	path := filepath.Join(lockDir, fmt.Sprintf("partner-%d.lock", partnerID))
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire partner lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrTransient, "runlock", "acquire",
			fmt.Sprintf("partner %d is locked by another run", partnerID), nil)
	}
	return &Lock{flock: fl, path: path}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. The lock file stays behind; only the advisory
// lock matters.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
