package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrScratchUnconfigured is returned when no scratch directory is configured.
var ErrScratchUnconfigured = errors.New("temp directory is not configured")

// Scratch is the local directory that holds staged uploads, unpacked
// entries and produced files.
type Scratch struct {
	dir string
}

// NewScratch returns a Scratch rooted at dir, creating it if needed.
func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		return nil, ErrScratchUnconfigured
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch root.
func (s *Scratch) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Stage copies r into a new scratch file. If r is longer than limit the
// partial copy is removed and ErrExceedsLimit is returned. The returned file
// is fully written and closed; the caller must Release it.
func (s *Scratch) Stage(r io.Reader, limit Limit) (*StagedFile, error) {
	if s == nil || s.dir == "" {
		return nil, ErrScratchUnconfigured
	}

	f, err := os.CreateTemp(s.dir, "stage-*")
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	staged := &StagedFile{path: f.Name()}

	br := NewBoundedReader(r, limit)
	_, copyErr := io.Copy(f, br)
	if copyErr == nil {
		copyErr = f.Sync()
	}
	closeErr := f.Close()

	staged.size = br.BytesRead()
	if copyErr != nil {
		staged.Release()
		if errors.Is(copyErr, ErrExceedsLimit) {
			return nil, &LimitError{Size: staged.size, Limit: limit}
		}
		return nil, fmt.Errorf("write staged file: %w", copyErr)
	}
	if closeErr != nil {
		staged.Release()
		return nil, fmt.Errorf("close staged file: %w", closeErr)
	}
	return staged, nil
}

// MkdirTemp creates a scratch subdirectory. The caller must Release it.
func (s *Scratch) MkdirTemp(prefix string) (*StagedDir, error) {
	if s == nil || s.dir == "" {
		return nil, ErrScratchUnconfigured
	}
	dir, err := os.MkdirTemp(s.dir, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch subdir: %w", err)
	}
	return &StagedDir{path: dir}, nil
}

// LimitError reports a stream cut off by BoundedReader. Size is the number
// of bytes seen before giving up, so it is at most limit+1.
type LimitError struct {
	Size  int64
	Limit Limit
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: read more than %s", ErrExceedsLimit, e.Limit)
}

func (e *LimitError) Unwrap() error {
	return ErrExceedsLimit
}

// StagedFile is an exclusively owned file in scratch storage.
type StagedFile struct {
	path     string
	size     int64
	released bool
}

// Path returns the file's location on disk.
func (f *StagedFile) Path() string {
	return f.path
}

// Size returns the number of bytes written.
func (f *StagedFile) Size() int64 {
	return f.size
}

// Open opens the staged bytes for reading.
func (f *StagedFile) Open() (*os.File, error) {
	return os.Open(f.path)
}

// Release deletes the file. It is safe to call more than once and after
// MoveTo.
func (f *StagedFile) Release() error {
	if f == nil || f.released {
		return nil
	}
	f.released = true
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not remove staged file", "path", f.path, "error", err)
		return err
	}
	return nil
}

// MoveTo renames the file to dst. Ownership passes to the caller, and a
// later Release becomes a no-op.
func (f *StagedFile) MoveTo(dst string) error {
	if f.released {
		return fmt.Errorf("staged file %s already released", filepath.Base(f.path))
	}
	if err := os.Rename(f.path, dst); err != nil {
		return fmt.Errorf("move staged file: %w", err)
	}
	f.path = dst
	f.released = true
	return nil
}

// StagedDir is an exclusively owned scratch directory tree.
type StagedDir struct {
	path     string
	released bool
}

// Path returns the directory location.
func (d *StagedDir) Path() string {
	return d.path
}

// Release removes the directory and everything in it.
func (d *StagedDir) Release() error {
	if d == nil || d.released {
		return nil
	}
	d.released = true
	if err := os.RemoveAll(d.path); err != nil {
		slog.Warn("could not remove scratch dir", "path", d.path, "error", err)
		return err
	}
	return nil
}

// Sweep removes staged files and scratch directories last modified before
// now minus maxAge. Produced files, which are named by their storage
// identifier, are kept. It returns the number of entries removed.
func (s *Scratch) Sweep(maxAge time.Duration) (int, error) {
	if s == nil || s.dir == "" {
		return 0, ErrScratchUnconfigured
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if _, err := uuid.Parse(e.Name()); err == nil {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
