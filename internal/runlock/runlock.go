// Package runlock keeps two sync runs from touching the provider at the
// same time, whether they come from the scheduler, an HTTP trigger or
// another process sharing the state directory.
package runlock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/flock"
)

var ErrRunInProgress = errors.New("sync already in progress")

type Lock struct {
	mu   sync.Mutex
	path string
}

// New returns a lock backed by the file at path. An empty path gives an
// in-process lock only.
func New(path string) *Lock {
	return &Lock{path: path}
}

// TryAcquire takes the lock without waiting. The returned func releases it.
func (l *Lock) TryAcquire() (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	if l.path == "" {
		return l.mu.Unlock, nil
	}

	fl := flock.New(l.path)
	locked, err := fl.TryLock()
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", l.path, err)
	}
	if !locked {
		l.mu.Unlock()
		return nil, ErrRunInProgress
	}

	return func() {
		_ = fl.Unlock()
		l.mu.Unlock()
	}, nil
}
