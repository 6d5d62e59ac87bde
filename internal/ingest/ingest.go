package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/ingest/internal/logging"
	"github.com/google/uuid"
)

// PackageHandler unpacks self-describing multi-file packages. Files must be
// produced through out so they are guarded, typed and fingerprinted like
// every other produced file. Returning an error aborts the whole call.
type PackageHandler interface {
	HandlePackage(pkg *StagedFile, fileName string, out *Emitter) (*Result, error)
}

// Options configure a Pipeline.
type Options struct {
	// Scratch holds staged uploads. Required for streamed uploads.
	Scratch *Scratch

	// StorageDir receives produced files. Defaults to the scratch dir.
	StorageDir string

	// Sniffer detects content types. Defaults to MagicSniffer.
	Sniffer Sniffer

	// Messages renders warnings and reasons. Defaults to DefaultMessages.
	Messages MessageFunc

	// PackageHandler handles BagIt packages. Nil disables that path.
	PackageHandler PackageHandler

	// ZipNameCharset decodes zip entry names not flagged as UTF-8.
	ZipNameCharset string

	// Logger defaults to the request logger from the call's context.
	Logger *slog.Logger
}

// Pipeline runs ingestion calls. It holds no per-call state and is safe for
// concurrent use.
type Pipeline struct {
	scratch    *Scratch
	storageDir string
	classifier *Classifier
	messages   MessageFunc
	pkg        PackageHandler
	names      *nameDecoder
	logger     *slog.Logger
}

// New builds a Pipeline from opts.
func New(opts Options) (*Pipeline, error) {
	names, err := newNameDecoder(opts.ZipNameCharset)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		scratch:    opts.Scratch,
		storageDir: opts.StorageDir,
		classifier: NewClassifier(opts.Sniffer),
		messages:   opts.Messages,
		pkg:        opts.PackageHandler,
		names:      names,
		logger:     opts.Logger,
	}
	if p.messages == nil {
		p.messages = DefaultMessages
	}
	if p.storageDir == "" {
		p.storageDir = opts.Scratch.Dir()
	}
	if p.storageDir != "" {
		if err := os.MkdirAll(p.storageDir, 0o750); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return p, nil
}

// Classifier returns the pipeline's content classifier.
func (p *Pipeline) Classifier() *Classifier {
	return p.classifier
}

// Ingest stages, classifies and unpacks one upload and returns the files it
// produced. A Result with OutcomeError means the upload was refused; an
// error is always an *ExecutionError and leaves nothing behind.
//
// The call runs sequentially and does not observe ctx cancellation; ctx
// only carries request-scoped logging fields.
func (p *Pipeline) Ingest(ctx context.Context, req UploadRequest, lim Limits) (*Result, error) {
	log := p.logger
	if log == nil {
		log = logging.FromContext(ctx)
	}
	log = log.With("file_name", req.FileName)

	if lim.Fixity == "" {
		lim.Fixity = DefaultFixity
	}
	if _, err := lim.Fixity.NewHash(); err != nil {
		return nil, &ExecutionError{Kind: KindInvalidRequest, FileName: req.FileName, Err: err}
	}

	switch {
	case req.Body != nil && req.StorageIdentifier != "":
		return nil, &ExecutionError{Kind: KindInvalidRequest, FileName: req.FileName,
			Message: "request carries both a stream and a storage identifier"}
	case req.Body == nil && req.StorageIdentifier == "":
		return nil, &ExecutionError{Kind: KindInvalidRequest, FileName: req.FileName,
			Message: "request carries neither a stream nor a storage identifier"}
	case req.StorageIdentifier != "":
		return p.ingestReference(req, lim, log)
	}

	if p.scratch == nil {
		return nil, &ExecutionError{Kind: KindScratchUnconfigured, FileName: req.FileName, Err: ErrScratchUnconfigured}
	}

	staged, err := p.scratch.Stage(req.Body, lim.MaxFileSize)
	if err != nil {
		var le *LimitError
		if errors.As(err, &le) {
			return nil, &ExecutionError{
				Kind:     KindFileTooLarge,
				FileName: req.FileName,
				Message:  p.messages(MsgFileExceedsLimit, limitArg(lim.MaxFileSize)),
				Err:      err,
			}
		}
		return nil, &ExecutionError{Kind: KindStaging, FileName: req.FileName, Err: err}
	}
	defer staged.Release()

	ct, err := p.classifier.ClassifyFile(staged.Path(), req.FileName, req.ContentType)
	if err != nil {
		return nil, &ExecutionError{Kind: KindStaging, FileName: req.FileName, Err: err}
	}
	log = log.With("content_type", ct.Type, "size", staged.Size())
	log.Debug("upload staged", "type_source", ct.Source)

	r := &run{p: p, req: req, limits: lim, ct: ct, log: log}

	res, err := r.unpack(staged)
	if err == nil && res != nil {
		return res, nil
	}

	var ue *UnpackError
	if errors.As(err, &ue) {
		log.Warn("unpack failed, storing upload as a single file",
			"reason", ue.Key,
			"error", ue.Err,
		)
		return r.single(staged, ue)
	}
	if err != nil {
		return nil, err
	}
	return r.single(staged, nil)
}

// ingestReference builds the record for a file that is already stored.
func (p *Pipeline) ingestReference(req UploadRequest, lim Limits, log *slog.Logger) (*Result, error) {
	if req.DeclaredSize < 0 {
		return nil, &ExecutionError{Kind: KindInvalidRequest, FileName: req.FileName,
			Message: "declared size is negative"}
	}
	ct := p.classifier.ClassifyReference(req.FileName, req.ContentType)

	switch Guard(req.DeclaredSize, lim.MaxFileSize, NewQuotaState(lim.Quota)) {
	case RejectSize:
		return nil, &ExecutionError{
			Kind:     KindFileTooLarge,
			FileName: req.FileName,
			Message:  p.messages(MsgFileExceedsLimit, limitArg(lim.MaxFileSize)),
		}
	case RejectQuota:
		return errorResult(req.FileName, ct.Type,
			p.messages(MsgQuotaExceeded, Bytes(req.DeclaredSize), limitArg(lim.Quota))), nil
	}

	f := UnpackedFile{
		FileName:          req.FileName,
		Size:              req.DeclaredSize,
		ContentType:       ct.Type,
		StorageIdentifier: req.StorageIdentifier,
	}
	if req.Checksum != nil {
		f.Checksum = *req.Checksum
	}
	log.Debug("storage reference registered", "storage_identifier", req.StorageIdentifier)

	return &Result{
		Outcome:     OutcomeSuccess,
		FileName:    req.FileName,
		ContentType: ct.Type,
		Method:      MethodReference,
		Files:       []UnpackedFile{f},
	}, nil
}

// run is the state of one Ingest call.
type run struct {
	p      *Pipeline
	req    UploadRequest
	limits Limits
	ct     ClassifiedType
	log    *slog.Logger
}

// unpack dispatches on the classified type. (nil, nil) means no unpacker
// applies and the upload is stored as a single file.
func (r *run) unpack(staged *StagedFile) (*Result, error) {
	switch r.ct.Type {
	case TypeGzip:
		return r.gunzip(staged)
	case TypeZip:
		return r.unzip(staged)
	case TypeShapefile:
		return r.repackShapefile(staged)
	case TypeBagIt:
		if r.p.pkg == nil {
			r.log.Debug("no package handler configured")
			return nil, nil
		}
		return r.unpackPackage(staged)
	}
	return nil, nil
}

// single stores the staged upload as one file. failure is the unpack
// failure that led here, if any. A fresh QuotaState is used so an abandoned
// unpack attempt consumes nothing.
func (r *run) single(staged *StagedFile, failure *UnpackError) (*Result, error) {
	quota := NewQuotaState(r.limits.Quota)
	size := staged.Size()

	switch Guard(size, r.limits.MaxFileSize, quota) {
	case RejectSize:
		return errorResult(r.req.FileName, r.ct.Type,
			r.p.messages(MsgFileExceedsLimit, limitArg(r.limits.MaxFileSize))), nil
	case RejectQuota:
		return errorResult(r.req.FileName, r.ct.Type,
			r.p.messages(MsgQuotaExceeded, Bytes(size), limitArg(r.limits.Quota))), nil
	}

	var sum *Checksum
	if c := r.req.Checksum; c != nil && c.Value != "" {
		sum = c
	}
	f, err := r.store(staged, r.req.FileName, "", r.ct.Type, sum)
	if err != nil {
		return nil, &ExecutionError{Kind: KindStaging, FileName: r.req.FileName, Err: err}
	}

	res := &Result{
		Outcome:     OutcomeSuccess,
		FileName:    r.req.FileName,
		ContentType: r.ct.Type,
		Method:      MethodSingle,
		Files:       []UnpackedFile{f},
	}
	if failure != nil {
		res.Warning = failure.Warning
		res.FallbackReason = failure.Key
		res.Files[0].IngestProblem = true
	}
	return res, nil
}

// store fingerprints staged and moves it to a new storage location.
// A nil sum is computed with the call's fixity algorithm.
func (r *run) store(staged *StagedFile, fileName, dirLabel, contentType string, sum *Checksum) (UnpackedFile, error) {
	var checksum Checksum
	if sum != nil {
		checksum = *sum
	} else {
		c, err := ComputeFile(r.limits.Fixity, staged.Path())
		if err != nil {
			return UnpackedFile{}, err
		}
		checksum = c
	}

	id := uuid.New().String()
	dst := filepath.Join(r.p.storageDir, id)
	if err := staged.MoveTo(dst); err != nil {
		return UnpackedFile{}, err
	}

	return UnpackedFile{
		FileName:          fileName,
		DirectoryLabel:    dirLabel,
		Size:              staged.Size(),
		ContentType:       contentType,
		StorageIdentifier: id,
		Location:          dst,
		Checksum:          checksum,
	}, nil
}

func (r *run) newEmitter() *Emitter {
	return &Emitter{run: r, quota: NewQuotaState(r.limits.Quota)}
}

// success wraps an emitter's files in a Success result.
func (r *run) success(e *Emitter, m Method) *Result {
	return &Result{
		Outcome:     OutcomeSuccess,
		FileName:    r.req.FileName,
		ContentType: r.ct.Type,
		Method:      m,
		Files:       e.Files(),
	}
}

// unpackFailure builds the recoverable failure for a rejected entry or a
// generic unpack error.
func (r *run) unpackFailure(err error, generic, sizeKey, quotaKey string) *UnpackError {
	var re *RejectError
	if errors.As(err, &re) {
		if re.Decision == RejectSize {
			return &UnpackError{Key: sizeKey, Warning: r.p.messages(sizeKey, limitArg(r.limits.MaxFileSize)), Err: err}
		}
		return &UnpackError{Key: quotaKey, Warning: r.p.messages(quotaKey, limitArg(r.limits.Quota)), Err: err}
	}
	return &UnpackError{Key: generic, Warning: r.p.messages(generic), Err: err}
}

func errorResult(fileName, contentType, reason string) *Result {
	return &Result{
		Outcome:     OutcomeError,
		FileName:    fileName,
		ContentType: contentType,
		Reason:      reason,
	}
}

// Emitter turns extracted byte streams into produced files for one unpack
// attempt. It owns a QuotaState shared by every file it emits.
type Emitter struct {
	run   *run
	quota *QuotaState
	files []UnpackedFile
}

// Emit stages r, guards its size, classifies it and moves it to storage.
// A refused file yields a *RejectError and leaves nothing behind.
func (e *Emitter) Emit(r io.Reader, fileName, directoryLabel string) (UnpackedFile, error) {
	lim := e.run.limits
	staged, err := e.run.p.scratch.Stage(r, bound(lim.MaxFileSize, e.quota))
	if err != nil {
		var le *LimitError
		if errors.As(err, &le) {
			return UnpackedFile{}, &RejectError{
				FileName: fileName,
				Size:     le.Size,
				Decision: rejection(le.Size, lim.MaxFileSize),
			}
		}
		return UnpackedFile{}, err
	}
	defer staged.Release()

	if d := Guard(staged.Size(), lim.MaxFileSize, e.quota); d != Admit {
		return UnpackedFile{}, &RejectError{FileName: fileName, Size: staged.Size(), Decision: d}
	}

	ct, err := e.run.p.classifier.ClassifyFile(staged.Path(), fileName, "")
	if err != nil {
		return UnpackedFile{}, err
	}

	f, err := e.run.store(staged, fileName, directoryLabel, ct.Type, nil)
	if err != nil {
		return UnpackedFile{}, err
	}
	e.files = append(e.files, f)
	e.run.log.Debug("file produced",
		"entry", fileName,
		"directory_label", directoryLabel,
		"entry_type", ct.Type,
		"entry_size", f.Size,
	)
	return f, nil
}

// EmitFile emits the file at p.
func (e *Emitter) EmitFile(p, fileName, directoryLabel string) (UnpackedFile, error) {
	f, err := os.Open(p)
	if err != nil {
		return UnpackedFile{}, err
	}
	defer f.Close()
	return e.Emit(f, fileName, directoryLabel)
}

// Files returns the files emitted so far.
func (e *Emitter) Files() []UnpackedFile {
	return append([]UnpackedFile(nil), e.files...)
}

// Quota returns the emitter's quota tracker.
func (e *Emitter) Quota() *QuotaState {
	return e.quota
}

// Limits returns the limits of the call.
func (e *Emitter) Limits() Limits {
	return e.run.limits
}

// Scratch returns the scratch area for temporary work.
func (e *Emitter) Scratch() *Scratch {
	return e.run.p.scratch
}

// discard deletes everything emitted so far.
func (e *Emitter) discard() {
	for _, f := range e.files {
		if err := os.Remove(f.Location); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.run.log.Warn("could not remove produced file", "path", f.Location, "error", err)
		}
	}
	e.files = nil
}
