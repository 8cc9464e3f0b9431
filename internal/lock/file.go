package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
)

const fileRetryDelay = 50 * time.Millisecond

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// File locks a file per key so separate processes sharing one local database
// or workbook do not interleave mutations.
type File struct {
	dir   string
	wait  time.Duration
	local *Local
}

// NewFile creates the lock directory if needed. A positive wait bounds how
// long Acquire retries.
func NewFile(dir string, wait time.Duration) (*File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &File{dir: dir, wait: wait, local: NewLocal()}, nil
}

// Path returns the lock file used for key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, ".rolltrack-"+unsafeKeyChars.ReplaceAllString(key, "_")+".lock")
}

// Acquire takes the in-process slot first, then the file lock.
func (f *File) Acquire(ctx context.Context, key string) (func(), error) {
	if f.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.wait)
		defer cancel()
	}
	releaseLocal, err := f.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	fl := flock.New(f.Path(key))
	locked, err := fl.TryLockContext(ctx, fileRetryDelay)
	if err != nil || !locked {
		releaseLocal()
		if err == nil {
			err = fmt.Errorf("lock %s not obtained", fl.Path())
		}
		return nil, apperr.Wrap(apperr.CodeLocked, err, "wait for ledger file lock")
	}
	return func() {
		_ = fl.Unlock()
		releaseLocal()
	}, nil
}
