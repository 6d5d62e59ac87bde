// Package store persists ingestion records and per-owner quota usage.
//
// Two implementations are provided: MemoryStore for tests and single-node
// deployments without a database, and PGStore backed by PostgreSQL. Both
// count only successful ingestions against an owner's quota.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/ingest/internal/ingest"
)

// ErrNotFound is returned when an ingestion does not exist.
var ErrNotFound = errors.New("ingestion not found")

// DefaultListLimit caps ListIngestions when no limit is given.
const DefaultListLimit = 50

// Ingestion is the persisted record of one Ingest call.
type Ingestion struct {
	ID             string                `json:"id"`
	Owner          string                `json:"owner"`
	FileName       string                `json:"file_name"`
	ContentType    string                `json:"content_type"`
	Outcome        ingest.Outcome        `json:"outcome"`
	Method         ingest.Method         `json:"method,omitempty"`
	Files          []ingest.UnpackedFile `json:"files,omitempty"`
	TotalBytes     int64                 `json:"total_bytes"`
	Warning        string                `json:"warning,omitempty"`
	FallbackReason string                `json:"fallback_reason,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	IPAddress      string                `json:"ip_address,omitempty"`
	UserAgent      string                `json:"user_agent,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// FromResult builds a record from a pipeline result.
func FromResult(id, owner string, res *ingest.Result) *Ingestion {
	return &Ingestion{
		ID:             id,
		Owner:          owner,
		FileName:       res.FileName,
		ContentType:    res.ContentType,
		Outcome:        res.Outcome,
		Method:         res.Method,
		Files:          res.Files,
		TotalBytes:     res.TotalSize(),
		Warning:        res.Warning,
		FallbackReason: res.FallbackReason,
		Reason:         res.Reason,
		CreatedAt:      time.Now().UTC(),
	}
}

// counts reports whether the record consumes quota.
func (in *Ingestion) counts() bool {
	return in.Outcome == ingest.OutcomeSuccess && in.TotalBytes > 0
}

// Store persists ingestion records.
type Store interface {
	// SaveIngestion stores rec and, for successful ingestions, adds its
	// bytes to the owner's usage.
	SaveIngestion(ctx context.Context, rec *Ingestion) error

	// GetIngestion returns the record with id or ErrNotFound.
	GetIngestion(ctx context.Context, id string) (*Ingestion, error)

	// ListIngestions returns the owner's most recent records, newest first.
	ListIngestions(ctx context.Context, owner string, limit int) ([]*Ingestion, error)

	// UsedBytes returns the bytes counted against owner's quota.
	UsedBytes(ctx context.Context, owner string) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close()
}

// QuotaStatus describes an owner's quota position.
type QuotaStatus struct {
	Owner     string `json:"owner"`
	Used      int64  `json:"used_bytes"`
	Ceiling   *int64 `json:"ceiling_bytes,omitempty"`
	Remaining *int64 `json:"remaining_bytes,omitempty"`
}

// Quota resolves the owner's remaining quota under ceiling. An unlimited
// ceiling yields an unlimited remaining quota.
func Quota(ctx context.Context, s Store, owner string, ceiling ingest.Limit) (QuotaStatus, ingest.Limit, error) {
	used, err := s.UsedBytes(ctx, owner)
	if err != nil {
		return QuotaStatus{}, ingest.Limit{}, err
	}

	status := QuotaStatus{Owner: owner, Used: used}
	max, ok := ceiling.Bytes()
	if !ok {
		return status, ingest.Unlimited(), nil
	}

	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	status.Ceiling = &max
	status.Remaining = &remaining
	return status, ingest.MaxBytes(remaining), nil
}

// RemainingQuota returns the quota left for owner under ceiling.
func RemainingQuota(ctx context.Context, s Store, owner string, ceiling ingest.Limit) (ingest.Limit, error) {
	_, lim, err := Quota(ctx, s, owner, ceiling)
	return lim, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return DefaultListLimit
	}
	return limit
}
