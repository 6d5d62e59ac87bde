package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// UploadRequest describes one file handed to Ingest. Exactly one of Body
// and StorageIdentifier must be set.
type UploadRequest struct {
	// Body streams the uploaded bytes.
	Body io.Reader

	// StorageIdentifier refers to bytes that are already stored. No
	// staging, sniffing or unpacking happens for such requests.
	StorageIdentifier string

	// DeclaredSize is the size of a storage-referenced file.
	DeclaredSize int64

	// FileName is the name the client gave the upload.
	FileName string

	// ContentType is the client-supplied type, possibly empty.
	ContentType string

	// Checksum is an optional precomputed digest of the raw upload.
	Checksum *Checksum
}

// Limits are the per-call ceilings applied by the Guard.
type Limits struct {
	// MaxFileSize applies to each produced file and to the raw upload.
	MaxFileSize Limit

	// Quota is the aggregate ceiling for all files of the call.
	Quota Limit

	// MaxZipEntries caps the files taken from one zip archive. Zero means
	// unlimited.
	MaxZipEntries int

	// Fixity is the algorithm used to fingerprint produced files.
	Fixity ChecksumType
}

// Outcome tags a Result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Method names the path that produced a Result's files.
type Method string

const (
	MethodSingle    Method = "single"
	MethodReference Method = "reference"
	MethodGzip      Method = "gzip"
	MethodZip       Method = "zip"
	MethodShapefile Method = "shapefile"
	MethodPackage   Method = "package"
)

// UnpackedFile is one canonical file record produced by Ingest.
type UnpackedFile struct {
	FileName          string   `json:"file_name"`
	DirectoryLabel    string   `json:"directory_label,omitempty"`
	Size              int64    `json:"size"`
	ContentType       string   `json:"content_type"`
	StorageIdentifier string   `json:"storage_identifier"`
	Location          string   `json:"location,omitempty"`
	Checksum          Checksum `json:"checksum"`
	IngestProblem     bool     `json:"ingest_problem,omitempty"`
}

// Result is the outcome of one Ingest call.
type Result struct {
	Outcome     Outcome        `json:"outcome"`
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	Method      Method         `json:"method,omitempty"`
	Files       []UnpackedFile `json:"files,omitempty"`

	// Warning describes a fallback that happened on a Success.
	Warning string `json:"warning,omitempty"`

	// FallbackReason is the message key of the fallback, if any.
	FallbackReason string `json:"fallback_reason,omitempty"`

	// Reason explains an Error outcome.
	Reason string `json:"reason,omitempty"`
}

// Succeeded reports whether the outcome is Success.
func (r *Result) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

// TotalSize sums the sizes of all produced files.
func (r *Result) TotalSize() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Size
	}
	return n
}

// Release deletes the stored bytes of every produced file that lives in
// scratch storage. Storage-referenced files are left alone.
func (r *Result) Release() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, f := range r.Files {
		if f.Location == "" {
			continue
		}
		if err := os.Remove(f.Location); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrorKind classifies an ExecutionError.
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindScratchUnconfigured ErrorKind = "scratch_unconfigured"
	KindStaging             ErrorKind = "staging_failure"
	KindFileTooLarge        ErrorKind = "file_too_large"
	KindPackage             ErrorKind = "package_failure"
	KindShapefile           ErrorKind = "shapefile_failure"
)

// ExecutionError is a fatal failure of an Ingest call. No files survive it.
type ExecutionError struct {
	Kind     ErrorKind
	FileName string
	Message  string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.FileName == "" {
		return fmt.Sprintf("ingest %s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("ingest %s %q: %s", e.Kind, e.FileName, msg)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an ExecutionError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Kind == k
}

// UnpackError is a recoverable unpack failure. The orchestrator answers it
// by storing the original upload as a single file with Warning attached.
type UnpackError struct {
	// Key is the message key of the warning.
	Key     string
	Warning string
	Err     error
}

func (e *UnpackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unpack failed (%s): %v", e.Key, e.Err)
	}
	return fmt.Sprintf("unpack failed (%s)", e.Key)
}

func (e *UnpackError) Unwrap() error {
	return e.Err
}

// RejectError reports a produced file the Guard refused.
type RejectError struct {
	FileName string
	Size     int64
	Decision Decision
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s (%d bytes)", e.FileName, e.Decision, e.Size)
}
