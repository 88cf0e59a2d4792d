package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// FileLocker holds an flock on <dir>/<name>_scraper.pid and records the
// owner's pid in it.
type FileLocker struct {
	dir string
}

// NewFileLocker constructs a FileLocker rooted at dir.
func NewFileLocker(dir string) *FileLocker {
	if dir == "" {
		dir = "."
	}
	return &FileLocker{dir: dir}
}

// Path returns the lock file used for name.
func (l *FileLocker) Path(name string) string {
	return filepath.Join(l.dir, name+"_scraper.pid")
}

// TryLock implements Locker.
func (l *FileLocker) TryLock(_ context.Context, name string) (func(), bool, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock dir: %w", err)
	}
	path := l.Path(name)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, false, nil
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, false, fmt.Errorf("write pid to %s: %w", path, err)
	}

	return func() { _ = fl.Unlock() }, true, nil
}

var _ Locker = (*FileLocker)(nil)
