// Package file implements local filesystem data sources.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"breachetl/internal/etlerr"
)

// Local is a filesystem data source that opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path. It is safe for concurrent use.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A canceled context is returned as is
// without touching the filesystem. Filesystem failures, including a path
// naming a directory, are ErrIO and still match os.ErrNotExist and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, etlerr.New(etlerr.ErrIO, "open "+l.path, err)
	}
	if fi, err := f.Stat(); err != nil || fi.IsDir() {
		_ = f.Close()
		if err == nil {
			err = errors.New("is a directory")
		}
		return nil, etlerr.New(etlerr.ErrIO, "open "+l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

// String implements fmt.Stringer for log fields.
func (l *Local) String() string { return fmt.Sprintf("file:%s", l.path) }
