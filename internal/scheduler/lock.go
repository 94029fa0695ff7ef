package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when another job holds the lock.
var ErrBusy = errors.New("another job is already running")

// Lock admits one job at a time, within this process and across processes
// sharing the lock file.
type Lock struct {
	mu   sync.Mutex
	file *flock.Flock
}

func NewLock(path string) *Lock {
	return &Lock{file: flock.New(path)}
}

// TryAcquire never blocks. The returned release must be called exactly once.
func (l *Lock) TryAcquire() (release func(), err error) {
	if !l.mu.TryLock() {
		return nil, ErrBusy
	}
	if err := os.MkdirAll(filepath.Dir(l.file.Path()), 0o755); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := l.file.TryLock()
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		l.mu.Unlock()
		return nil, ErrBusy
	}
	return func() {
		_ = l.file.Unlock()
		l.mu.Unlock()
	}, nil
}
