package ingest

// streaming.go provides the readers used to move bytes into scratch storage
// without buffering whole files in memory:
//
//   - CountingReader: tracks bytes read, for progress and final sizes
//   - BoundedReader: fails with ErrExceedsLimit once a byte ceiling is passed
//
// Bounding happens while streaming, so an oversized upload or archive entry
// is cut off after ceiling+1 bytes instead of being written out in full.

import (
	"errors"
	"io"
)

// ErrExceedsLimit is returned by BoundedReader when the stream is longer
// than its ceiling.
var ErrExceedsLimit = errors.New("stream exceeds size limit")

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// BoundedReader passes through at most limit bytes. Reading past the limit
// returns ErrExceedsLimit; BytesRead then holds limit+1 at most.
type BoundedReader struct {
	counter *CountingReader
	limit   Limit
}

// NewBoundedReader wraps r with limit. An unset limit only counts.
func NewBoundedReader(r io.Reader, limit Limit) *BoundedReader {
	if max, ok := limit.Bytes(); ok {
		// One extra byte distinguishes "exactly at the limit" from "over it".
		r = io.LimitReader(r, max+1)
	}
	return &BoundedReader{
		counter: NewCountingReader(r, 0),
		limit:   limit,
	}
}

// Read implements io.Reader.
func (r *BoundedReader) Read(p []byte) (int, error) {
	n, err := r.counter.Read(p)
	if r.limit.Exceeded(r.counter.BytesRead) {
		return n, ErrExceedsLimit
	}
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *BoundedReader) BytesRead() int64 {
	return r.counter.BytesRead
}
