package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a datasource.Source that opens a chunk file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path. It is safe for concurrent use.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound filesystem path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading and returns it as an io.ReadCloser.
//
// Behavior:
//   - A context that is already done short-circuits without touching the
//     filesystem.
//   - Filesystem errors are wrapped with the path and remain matchable with
//     errors.Is (e.g. os.ErrNotExist).
//   - The kernel is told the file will be read front to back once, so
//     readahead is aggressive and pages do not linger in the cache after a
//     multi-gigabyte chunk has been consumed. The hint is best effort.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return &sequentialFile{File: f}, nil
}

// sequentialFile drops the file's cached pages on Close.
type sequentialFile struct {
	*os.File
}

func (s *sequentialFile) Close() error {
	adviseDone(s.File)
	return s.File.Close()
}
