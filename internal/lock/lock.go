// Package lock provides the cross-process single-instance lock taken around
// every scraper cycle.
package lock

import "context"

// Locker acquires a named, non-blocking lock. Contention is reported as
// acquired == false with a nil error.
type Locker interface {
	TryLock(ctx context.Context, name string) (unlock func(), acquired bool, err error)
}

// Noop always grants the lock.
type Noop struct{}

// TryLock implements Locker.
func (Noop) TryLock(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

var _ Locker = Noop{}
