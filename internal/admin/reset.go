// Package admin provides administrative operations for the ingestion store.
package admin

import (
	"context"
	"fmt"
	"time"
)

// ResetTimeout is the maximum duration for store reset operations.
const ResetTimeout = 30 * time.Second

// Resetter clears the tables of an ingestion store.
type Resetter interface {
	ResetIngestions(ctx context.Context) error
	ResetQuotaUsage(ctx context.Context) error
}

type resetFn func(ctx context.Context) error

// ResetAll deletes every ingestion record and zeroes all quota usage.
// Produced files are not touched.
// This is a destructive operation - use with caution.
func ResetAll(ctx context.Context, r Resetter) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	return runResets(ctx, []resetFn{
		r.ResetIngestions,
		r.ResetQuotaUsage,
	})
}

func runResets(ctx context.Context, resets []resetFn) error {
	for i, reset := range resets {
		if err := reset(ctx); err != nil {
			return fmt.Errorf("reset step %d: %w", i+1, err)
		}
	}
	return nil
}
