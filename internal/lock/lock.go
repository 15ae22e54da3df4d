// Package lock provides keyed mutual exclusion for provisioning work that must
// not run twice for the same record.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the lock could not be taken within the
// configured wait.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive, per-key critical sections. The returned release
// func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Options bound how long a holder may keep a lock and how long a caller waits.
type Options struct {
	// TTL caps the lifetime of a distributed lock whose holder died.
	TTL time.Duration
	// Wait caps how long Acquire blocks before returning ErrNotAcquired.
	Wait time.Duration
	// RetryInterval is the polling period for distributed locks.
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 15 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 50 * time.Millisecond
	}
	return o
}
