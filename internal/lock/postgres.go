package lock

import (
	"context"
	"hash/fnv"
)

// AdvisoryLocker is satisfied by the PostgreSQL store.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// PostgresLocker maps lock names onto PostgreSQL session advisory locks.
type PostgresLocker struct {
	store AdvisoryLocker
	base  int64
}

// NewPostgresLocker constructs a PostgresLocker; base namespaces the keys.
func NewPostgresLocker(store AdvisoryLocker, base int64) *PostgresLocker {
	return &PostgresLocker{store: store, base: base}
}

// Key returns the advisory lock key of name.
func (l *PostgresLocker) Key(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return l.base<<32 | int64(h.Sum32())
}

// TryLock implements Locker.
func (l *PostgresLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	return l.store.TryAdvisoryLock(ctx, l.Key(name))
}

var _ Locker = (*PostgresLocker)(nil)
