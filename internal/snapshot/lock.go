package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryInterval is how often a blocked Lock polls the lock file.
const lockRetryInterval = 50 * time.Millisecond

// dirLock serializes writers of one snapshot directory across processes.
type dirLock struct {
	lock *flock.Flock
}

// newDirLock returns a lock backed by path. The file is created on first Lock.
func newDirLock(path string) Locker {
	return &dirLock{lock: flock.New(path)}
}

// Lock blocks until the lock is held or ctx is done.
func (l *dirLock) Lock(ctx context.Context) error {
	locked, err := l.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire snapshot lock: timeout")
	}
	return nil
}

// Unlock releases the lock.
func (l *dirLock) Unlock() error {
	return l.lock.Unlock()
}
