package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/JonMunkholm/ingest/internal/ingest/bagit"
	"github.com/JonMunkholm/ingest/internal/logging"
	"github.com/JonMunkholm/ingest/internal/metrics"
	"github.com/JonMunkholm/ingest/internal/store"
	"github.com/google/uuid"
)

// DefaultUploadTimeout bounds a single ingest call when none is configured.
const DefaultUploadTimeout = 10 * time.Minute

// IngestRequest is one upload handed to the service. Exactly one of Body
// and StorageIdentifier must be set.
type IngestRequest struct {
	Body              io.Reader
	StorageIdentifier string
	DeclaredSize      int64
	FileName          string
	ContentType       string
	Checksum          *ingest.Checksum
}

// Service wraps the ingestion pipeline with admission control, per-owner
// quotas, persistence and metrics.
type Service struct {
	pipeline *ingest.Pipeline
	scratch  *ingest.Scratch
	store    store.Store
	metrics  *metrics.Metrics
	limiter  *UploadLimiter

	limits  ingest.Limits
	quota   ingest.Limit
	timeout time.Duration

	sweepInterval time.Duration
	sweepMaxAge   time.Duration

	mu     sync.Mutex
	owners map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipeline builds the ingestion pipeline described by cfg, with the
// BagIt handler plugged in when enabled.
func NewPipeline(cfg config.IngestConfig, logger *slog.Logger) (*ingest.Pipeline, *ingest.Scratch, error) {
	scratch, err := ingest.NewScratch(cfg.TempDir)
	if err != nil {
		return nil, nil, err
	}

	opts := ingest.Options{
		Scratch:        scratch,
		StorageDir:     cfg.StorageDir,
		ZipNameCharset: cfg.ZipNameCharset,
		Logger:         logger,
	}
	if cfg.BagItEnabled {
		hl := logger
		if hl == nil {
			hl = slog.Default()
		}
		opts.PackageHandler = bagit.NewHandler(hl)
	}

	p, err := ingest.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	return p, scratch, nil
}

// NewService creates a Service backed by st. m receives ingest metrics and
// the limiter gauges.
func NewService(cfg *config.Config, st store.Store, m *metrics.Metrics) (*Service, error) {
	pipeline, scratch, err := NewPipeline(cfg.Ingest, nil)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Upload.Timeout
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}

	s := &Service{
		pipeline:      pipeline,
		scratch:       scratch,
		store:         st,
		metrics:       m,
		limiter:       NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		limits:        cfg.Ingest.Limits(),
		quota:         cfg.Ingest.QuotaBytes.Limit(),
		timeout:       timeout,
		sweepInterval: cfg.Ingest.SweepInterval,
		sweepMaxAge:   cfg.Ingest.SweepMaxAge,
		owners:        make(map[string]*ownerLock),
	}

	if m != nil {
		m.RegisterGaugeFunc("upload_limiter_active", "Ingest calls currently holding an upload slot.",
			func() float64 { return float64(s.limiter.ActiveCount()) })
		m.RegisterGaugeFunc("upload_limiter_waiting", "Ingest calls waiting for an upload slot.",
			func() float64 { return float64(s.limiter.Status().Waiting) })
	}
	return s, nil
}

// errAbandoned is returned to the pipeline by reads after its call timed out.
var errAbandoned = errors.New("ingest abandoned")

// abandonableReader hands the caller's body to the pipeline goroutine until
// abandon is called. After that every Read fails without touching the body.
type abandonableReader struct {
	mu        sync.Mutex
	r         io.Reader
	abandoned bool
}

func (a *abandonableReader) Read(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.abandoned {
		return 0, errAbandoned
	}
	return a.r.Read(p)
}

// abandon waits for a Read in progress to return.
func (a *abandonableReader) abandon() {
	a.mu.Lock()
	a.abandoned = true
	a.mu.Unlock()
}

type ingestOutcome struct {
	res *ingest.Result
	err error
}

// Ingest runs one upload through the pipeline on behalf of the context's
// owner and persists the outcome.
//
// A refused upload returns a record with OutcomeError and a nil error.
// Errors are fatal: pipeline ExecutionErrors, ErrTooManyUploads,
// ErrQuotaUnavailable, ErrPersist or the context's error on timeout.
// On timeout Ingest returns once a Read in progress on Body has returned,
// and Body is not read afterwards.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*store.Ingestion, error) {
	owner := GetOwnerFromContext(ctx)
	id := uuid.New().String()
	log := logging.WithFields(ctx, "upload_id", id, "owner", owner, "file_name", req.FileName)
	ctx = logging.ContextWithLogger(ctx, log)

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("upload rejected", "error", err)
		return nil, err
	}
	acquired := true
	defer func() {
		if acquired {
			s.limiter.Release()
		}
	}()

	// Usage is read and written under the owner lock so that concurrent
	// calls of one owner cannot overrun the quota together.
	if s.quota.IsSet() {
		unlock := s.lockOwner(owner)
		defer unlock()
	}

	limits := s.limits
	remaining, err := store.RemainingQuota(ctx, s.store, owner, s.quota)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuotaUnavailable, err)
	}
	limits.Quota = remaining

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var body *abandonableReader
	upload := ingest.UploadRequest{
		StorageIdentifier: req.StorageIdentifier,
		DeclaredSize:      req.DeclaredSize,
		FileName:          req.FileName,
		ContentType:       req.ContentType,
		Checksum:          req.Checksum,
	}
	if req.Body != nil {
		body = &abandonableReader{r: req.Body}
		upload.Body = body
	}

	start := time.Now()
	done := make(chan ingestOutcome, 1)
	go func() {
		res, err := s.pipeline.Ingest(runCtx, upload, limits)
		done <- ingestOutcome{res: res, err: err}
	}()


	var out ingestOutcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		// The pipeline cannot be interrupted. The slot stays taken until
		// it finishes, and whatever it produced is discarded.
		if body != nil {
			body.abandon()
		}
		acquired = false
		go func() {
			defer s.limiter.Release()
			late := <-done
			if err := late.res.Release(); err != nil {
				log.Warn("could not release abandoned ingest", "error", err)
			}
		}()
		s.observeFatal(time.Since(start))
		log.Error("ingest abandoned", "error", runCtx.Err())
		return nil, fmt.Errorf("ingest %q: %w", req.FileName, runCtx.Err())
	}

	elapsed := time.Since(start)
	if out.err != nil {
		s.observeFatal(elapsed)
		log.Error("ingest failed", "error", out.err, "duration_ms", elapsed.Milliseconds())
		return nil, out.err
	}

	rec := store.FromResult(id, owner, out.res)
	rec.IPAddress = GetIPAddressFromContext(ctx)
	rec.UserAgent = GetUserAgentFromContext(ctx)

	if err := s.store.SaveIngestion(ctx, rec); err != nil {
		if relErr := out.res.Release(); relErr != nil {
			log.Warn("could not release unsaved ingest", "error", relErr)
		}
		s.observeFatal(elapsed)
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if s.metrics != nil {
		s.metrics.ObserveResult(out.res, elapsed)
	}
	log.Info("ingest finished",
		"outcome", rec.Outcome,
		"method", rec.Method,
		"files", len(rec.Files),
		"bytes", rec.TotalBytes,
		"duration_ms", elapsed.Milliseconds(),
	)
	return rec, nil
}

func (s *Service) observeFatal(elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveFatal(elapsed)
	}
}

// lockOwner serializes quota-bound calls of one owner. The returned func
// unlocks and drops the entry once nobody holds it.
func (s *Service) lockOwner(owner string) func() {
	s.mu.Lock()
	l, ok := s.owners[owner]
	if !ok {
		l = &ownerLock{}
		s.owners[owner] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.owners, owner)
		}
		s.mu.Unlock()
	}
}

// GetIngestion returns the context owner's ingestion with id.
// Records of other owners are reported as store.ErrNotFound.
func (s *Service) GetIngestion(ctx context.Context, id string) (*store.Ingestion, error) {
	rec, err := s.store.GetIngestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Owner != GetOwnerFromContext(ctx) {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// ListIngestions returns the owner's most recent ingestions.
func (s *Service) ListIngestions(ctx context.Context, owner string, limit int) ([]*store.Ingestion, error) {
	return s.store.ListIngestions(ctx, owner, limit)
}

// QuotaStatus reports the owner's usage against the configured quota.
func (s *Service) QuotaStatus(ctx context.Context, owner string) (store.QuotaStatus, error) {
	status, _, err := store.Quota(ctx, s.store, owner, s.quota)
	if err != nil {
		return store.QuotaStatus{}, fmt.Errorf("%w: %w", ErrQuotaUnavailable, err)
	}
	return status, nil
}

// UploadLimiterStatus returns the current state of the upload limiter.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until all active uploads complete or ctx is done.
// Used during graceful shutdown.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Classifier exposes the pipeline's content classifier.
func (s *Service) Classifier() *ingest.Classifier {
	return s.pipeline.Classifier()
}
