package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/JonMunkholm/ingest/internal/metrics"
	"github.com/JonMunkholm/ingest/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Ingest: config.IngestConfig{
			TempDir:         t.TempDir(),
			MaxFileSize:     1 << 20,
			MaxZipEntries:   10,
			FixityAlgorithm: "MD5",
			BagItEnabled:    true,
			SweepInterval:   time.Hour,
			SweepMaxAge:     time.Hour,
		},
		Upload: config.UploadConfig{
			MaxConcurrent: 2,
			MaxWaitTime:   100 * time.Millisecond,
			Timeout:       time.Minute,
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config, st store.Store) *Service {
	t.Helper()
	svc, err := NewService(cfg, st, metrics.New())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func ownerContext(owner string) context.Context {
	ctx := ContextWithOwner(context.Background(), owner)
	ctx = ContextWithIPAddress(ctx, "203.0.113.7")
	return ContextWithUserAgent(ctx, "curl/8.0")
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestService_IngestPersistsRecord(t *testing.T) {
	cfg := testConfig(t)
	st := store.NewMemoryStore()
	svc := newTestService(t, cfg, st)
	ctx := ownerContext("alice")

	body := "id,name\n1,alpha\n2,beta\n"
	rec, err := svc.Ingest(ctx, IngestRequest{Body: strings.NewReader(body), FileName: "data.csv"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if rec.Outcome != ingest.OutcomeSuccess {
		t.Fatalf("Outcome = %q, want success (reason %q)", rec.Outcome, rec.Reason)
	}
	if rec.Owner != "alice" {
		t.Errorf("Owner = %q, want alice", rec.Owner)
	}
	if rec.IPAddress != "203.0.113.7" || rec.UserAgent != "curl/8.0" {
		t.Errorf("audit fields = %q/%q", rec.IPAddress, rec.UserAgent)
	}
	if rec.TotalBytes != int64(len(body)) {
		t.Errorf("TotalBytes = %d, want %d", rec.TotalBytes, len(body))
	}
	if len(rec.Files) != 1 || rec.Files[0].Checksum.Type != ingest.MD5 {
		t.Fatalf("Files = %+v, want one MD5-fingerprinted file", rec.Files)
	}

	got, err := svc.GetIngestion(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetIngestion: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("GetIngestion ID = %q, want %q", got.ID, rec.ID)
	}

	if _, err := svc.GetIngestion(ownerContext("mallory"), rec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetIngestion by other owner = %v, want ErrNotFound", err)
	}

	list, err := svc.ListIngestions(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListIngestions: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListIngestions returned %d records, want 1", len(list))
	}

	if got := svc.UploadLimiterStatus().Active; got != 0 {
		t.Errorf("Active after Ingest = %d, want 0", got)
	}
}

func TestService_IngestAnonymousOwner(t *testing.T) {
	svc := newTestService(t, testConfig(t), store.NewMemoryStore())

	rec, err := svc.Ingest(context.Background(), IngestRequest{Body: strings.NewReader("hello"), FileName: "a.txt"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.Owner != AnonymousOwner {
		t.Errorf("Owner = %q, want %q", rec.Owner, AnonymousOwner)
	}
}

func TestService_IngestQuotaFromStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.QuotaBytes = 100
	st := store.NewMemoryStore()
	svc := newTestService(t, cfg, st)
	ctx := ownerContext("alice")

	first, err := svc.Ingest(ctx, IngestRequest{Body: strings.NewReader(strings.Repeat("a", 90)), FileName: "first.txt"})
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if first.Outcome != ingest.OutcomeSuccess {
		t.Fatalf("first Outcome = %q, want success", first.Outcome)
	}

	second, err := svc.Ingest(ctx, IngestRequest{Body: strings.NewReader(strings.Repeat("b", 50)), FileName: "second.txt"})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second.Outcome != ingest.OutcomeError {
		t.Fatalf("second Outcome = %q, want error", second.Outcome)
	}
	if second.Reason == "" {
		t.Error("refused ingest carries no reason")
	}

	status, err := svc.QuotaStatus(ctx, "alice")
	if err != nil {
		t.Fatalf("QuotaStatus: %v", err)
	}
	if status.Used != 90 {
		t.Errorf("Used = %d, want 90", status.Used)
	}
	if status.Remaining == nil || *status.Remaining != 10 {
		t.Errorf("Remaining = %v, want 10", status.Remaining)
	}

	// Another owner has the full quota.
	other, err := svc.Ingest(ownerContext("bob"), IngestRequest{Body: strings.NewReader(strings.Repeat("c", 50)), FileName: "bob.txt"})
	if err != nil {
		t.Fatalf("bob Ingest: %v", err)
	}
	if other.Outcome != ingest.OutcomeSuccess {
		t.Errorf("bob Outcome = %q, want success", other.Outcome)
	}
}

func TestService_IngestConcurrentQuota(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.QuotaBytes = 100
	cfg.Upload.MaxConcurrent = 4
	cfg.Upload.MaxWaitTime = 5 * time.Second
	svc := newTestService(t, cfg, store.NewMemoryStore())
	ctx := ownerContext("alice")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Ingest(ctx, IngestRequest{Body: strings.NewReader(strings.Repeat("q", 40)), FileName: "q.txt"}); err != nil {
				t.Errorf("Ingest: %v", err)
			}
		}()
	}
	wg.Wait()

	status, err := svc.QuotaStatus(ctx, "alice")
	if err != nil {
		t.Fatalf("QuotaStatus: %v", err)
	}
	if status.Used != 80 {
		t.Errorf("Used = %d, want 80 (two of four uploads admitted)", status.Used)
	}
	if len(svc.owners) != 0 {
		t.Errorf("owner locks leaked: %d", len(svc.owners))
	}
}

func TestService_IngestBusy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxConcurrent = 1
	svc := newTestService(t, cfg, store.NewMemoryStore())

	if !svc.limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer svc.limiter.Release()

	_, err := svc.Ingest(context.Background(), IngestRequest{Body: strings.NewReader("x"), FileName: "x.txt"})
	if !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("Ingest on busy service = %v, want ErrTooManyUploads", err)
	}
}

func TestService_IngestFatalLeavesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.MaxFileSize = 10
	st := store.NewMemoryStore()
	svc := newTestService(t, cfg, st)

	_, err := svc.Ingest(context.Background(), IngestRequest{Body: strings.NewReader(strings.Repeat("x", 100)), FileName: "big.txt"})
	if !ingest.IsKind(err, ingest.KindFileTooLarge) {
		t.Fatalf("Ingest = %v, want FileTooLarge", err)
	}
	if got := MapError(err).Code; got != "FILE001" {
		t.Errorf("MapError code = %q, want FILE001", got)
	}

	list, _ := st.ListIngestions(context.Background(), AnonymousOwner, 0)
	if len(list) != 0 {
		t.Errorf("fatal ingest was persisted: %d records", len(list))
	}
	if names := dirEntries(t, cfg.Ingest.TempDir); len(names) != 0 {
		t.Errorf("scratch not empty after fatal ingest: %v", names)
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) SaveIngestion(context.Context, *store.Ingestion) error {
	return errors.New("connection reset by peer")
}

func TestService_IngestPersistFailureReleasesFiles(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, failingStore{store.NewMemoryStore()})

	_, err := svc.Ingest(context.Background(), IngestRequest{Body: strings.NewReader("payload"), FileName: "p.txt"})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Ingest = %v, want ErrPersist", err)
	}
	if names := dirEntries(t, cfg.Ingest.TempDir); len(names) != 0 {
		t.Errorf("produced files survived a failed save: %v", names)
	}
}

type quotaErrorStore struct {
	*store.MemoryStore
}

func (quotaErrorStore) UsedBytes(context.Context, string) (int64, error) {
	return 0, errors.New("dial tcp: connection refused")
}

func TestService_IngestQuotaUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.QuotaBytes = 100
	svc := newTestService(t, cfg, quotaErrorStore{store.NewMemoryStore()})

	_, err := svc.Ingest(context.Background(), IngestRequest{Body: strings.NewReader("x"), FileName: "x.txt"})
	if !errors.Is(err, ErrQuotaUnavailable) {
		t.Errorf("Ingest = %v, want ErrQuotaUnavailable", err)
	}
	if got := MapError(err).Code; got != "QUOTA001" {
		t.Errorf("MapError code = %q, want QUOTA001", got)
	}
}

// trickleReader yields one byte per Read and never reaches EOF. reads is
// not synchronized so that a Read after Ingest returns is a data race.
type trickleReader struct {
	reads int
}

func (r *trickleReader) Read(p []byte) (int, error) {
	time.Sleep(5 * time.Millisecond)
	r.reads++
	p[0] = 'x'
	return 1, nil
}

func TestService_IngestTimeoutAbandonsCall(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.Timeout = 50 * time.Millisecond
	st := store.NewMemoryStore()
	svc := newTestService(t, cfg, st)

	body := &trickleReader{}
	_, err := svc.Ingest(context.Background(), IngestRequest{Body: body, FileName: "slow.txt"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Ingest = %v, want DeadlineExceeded", err)
	}

	reads := body.reads
	if reads == 0 {
		t.Fatal("body was never read")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.WaitForUploads(ctx); err != nil {
		t.Fatalf("WaitForUploads: %v", err)
	}
	if body.reads != reads {
		t.Errorf("body read %d more times after Ingest returned", body.reads-reads)
	}

	list, _ := st.ListIngestions(context.Background(), AnonymousOwner, 0)
	if len(list) != 0 {
		t.Errorf("abandoned ingest was persisted: %d records", len(list))
	}
	if names := dirEntries(t, cfg.Ingest.TempDir); len(names) != 0 {
		t.Errorf("abandoned ingest left files: %v", names)
	}
}

func TestAbandonableReader(t *testing.T) {
	a := &abandonableReader{r: strings.NewReader("abc")}

	buf := make([]byte, 2)
	n, err := a.Read(buf)
	if err != nil || string(buf[:n]) != "ab" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	a.abandon()
	if _, err := a.Read(buf); !errors.Is(err, errAbandoned) {
		t.Errorf("Read after abandon = %v, want errAbandoned", err)
	}
}

func TestService_RunSweep(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg, store.NewMemoryStore())

	leftover := filepath.Join(cfg.Ingest.TempDir, "stage-123456")
	if err := os.WriteFile(leftover, []byte("crash"), 0o600); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(leftover, past, past); err != nil {
		t.Fatal(err)
	}

	if got := svc.runSweep(); got != 1 {
		t.Errorf("runSweep removed %d entries, want 1", got)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("leftover survived the sweep")
	}
}

func TestService_StartScratchSweeperStops(t *testing.T) {
	svc := newTestService(t, testConfig(t), store.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartScratchSweeper(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("sweeper did not stop after cancel")
	}
}

func TestContextOwner(t *testing.T) {
	if got := GetOwnerFromContext(context.Background()); got != AnonymousOwner {
		t.Errorf("owner of bare context = %q, want %q", got, AnonymousOwner)
	}
	if got := GetOwnerFromContext(ContextWithOwner(context.Background(), "")); got != AnonymousOwner {
		t.Errorf("empty owner = %q, want %q", got, AnonymousOwner)
	}
	if got := GetOwnerFromContext(ContextWithOwner(context.Background(), "alice")); got != "alice" {
		t.Errorf("owner = %q, want alice", got)
	}
}
