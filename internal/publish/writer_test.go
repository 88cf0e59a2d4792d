package publish

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// crashingFs simulates a failure after the staging file was partially written.
type crashingFs struct {
	afero.Fs
}

func (c crashingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := c.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return crashingFile{File: f}, nil
}

type crashingFile struct {
	afero.File
}

func (c crashingFile) Write(p []byte) (int, error) {
	n, _ := c.File.Write(p[:len(p)/2])
	return n, errors.New("disk full")
}

// renameFailFs fails after the staging file is complete, before the rename.
type renameFailFs struct {
	afero.Fs
}

func (r renameFailFs) Rename(string, string) error { return errors.New("crash before rename") }

func TestWriteFileReplacesContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs)

	require.NoError(t, w.WriteFile("/data/out.json", []byte(`[1]`)))
	require.NoError(t, w.WriteFile("/data/out.json", []byte(`[1,2]`)))

	got, err := afero.ReadFile(fs, "/data/out.json")
	require.NoError(t, err)
	require.Equal(t, `[1,2]`, string(got))

	exists, err := afero.Exists(fs, "/data/out.json"+TempSuffix)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestWriteFailureLeavesPreviousContent(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, NewWriter(base).WriteFile("/data/out.json", []byte(`["old"]`)))

	err := NewWriter(crashingFs{Fs: base}).WriteFile("/data/out.json", []byte(`["new","rows"]`))
	require.ErrorContains(t, err, "disk full")

	got, err := afero.ReadFile(base, "/data/out.json")
	require.NoError(t, err)
	require.Equal(t, `["old"]`, string(got))

	exists, err := afero.Exists(base, "/data/out.json"+TempSuffix)
	require.NoError(t, err)
	require.False(t, exists, "staging file must be cleaned up")
}

func TestCrashBeforeRenameLeavesPreviousContent(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, NewWriter(base).WriteFile("/data/out.json", []byte(`["old"]`)))

	err := NewWriter(renameFailFs{Fs: base}).WriteFile("/data/out.json", []byte(`["new"]`))
	require.Error(t, err)

	got, err := afero.ReadFile(base, "/data/out.json")
	require.NoError(t, err)
	require.Equal(t, `["old"]`, string(got))
}

func TestReadersNeverSeePartialContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs)
	a := []byte(`["aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"]`)
	b := []byte(`["bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"]`)
	require.NoError(t, w.WriteFile("/data/out.json", a))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			body := a
			if i%2 == 0 {
				body = b
			}
			if err := w.WriteFile("/data/out.json", body); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		got, err := afero.ReadFile(fs, "/data/out.json")
		if err != nil {
			continue
		}
		if s := string(got); s != string(a) && s != string(b) {
			t.Fatalf("reader observed partial content %q", s)
		}
	}
}
