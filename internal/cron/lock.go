package cron

import (
	"context"
	"errors"
	"sync"
)

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

var errLockNotHeld = errors.New("lock not held")

// LocalLock keeps cycles from overlapping within one process.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

// NewLocalLock constructs an unheld process-local lock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// Acquire reports false when a previous cycle still holds the lock.
func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

// Release frees the lock.
func (l *LocalLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return errLockNotHeld
	}
	l.held = false
	return nil
}
