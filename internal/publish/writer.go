// Package publish writes analysis artifacts to disk atomically and forwards
// them to optional mirrors.
package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// TempSuffix is appended to a destination path to form its staging file.
const TempSuffix = "_temp"

// Writer replaces files wholesale: readers see either the previous or the
// new complete content, never a partial write.
type Writer struct {
	fs afero.Fs
}

// NewWriter constructs a Writer on fs.
func NewWriter(fs afero.Fs) *Writer {
	return &Writer{fs: fs}
}

// Fs exposes the underlying filesystem.
func (w *Writer) Fs() afero.Fs { return w.fs }

// WriteFile stages body in <path>_temp, syncs it and renames it over path.
// On failure the staging file is removed and path is left untouched.
func (w *Writer) WriteFile(path string, body []byte) (err error) {
	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	tmp := path + TempSuffix
	f, err := w.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = w.fs.Remove(tmp)
		}
	}()

	if _, err := f.Write(body); err != nil {
		return errors.Join(fmt.Errorf("write %s: %w", tmp, err), f.Close())
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync %s: %w", tmp, err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := w.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
