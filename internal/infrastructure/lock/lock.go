// Package lock serializes mutating requests per entity id.
package lock

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock could not be acquired before the context ended
var ErrLockTimeout = errors.New("timed out waiting for entity lock")

// Locker hands out exclusive critical sections keyed by entity id
type Locker interface {
	// Acquire blocks until key is free or ctx is done. The returned release
	// function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
