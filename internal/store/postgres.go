package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertIngestionSQL = `
INSERT INTO ingestions(id, owner, file_name, content_type, outcome, method, total_bytes, payload, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	addUsageSQL = `
INSERT INTO quota_usage(owner, used_bytes, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (owner) DO UPDATE
SET used_bytes = quota_usage.used_bytes + EXCLUDED.used_bytes,
	updated_at = now()`

	selectIngestionSQL = `
SELECT payload
FROM ingestions
WHERE id = $1`

	listIngestionsSQL = `
SELECT payload
FROM ingestions
WHERE owner = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

	selectUsageSQL = `
SELECT used_bytes
FROM quota_usage
WHERE owner = $1`
)

// PGStore persists records in PostgreSQL. The full record is kept as a JSON
// payload next to the indexed columns.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// OpenPostgres connects a pool configured from cfg and verifies it.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PGStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// SaveIngestion inserts rec and updates quota usage in one transaction.
func (s *PGStore) SaveIngestion(ctx context.Context, rec *Ingestion) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("ingestion id is empty")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertIngestionSQL,
			rec.ID,
			rec.Owner,
			rec.FileName,
			rec.ContentType,
			string(rec.Outcome),
			string(rec.Method),
			rec.TotalBytes,
			payload,
			rec.IPAddress,
			rec.UserAgent,
			rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert ingestion: %w", err)
		}

		if !rec.counts() {
			return nil
		}
		if _, err := tx.Exec(ctx, addUsageSQL, rec.Owner, rec.TotalBytes); err != nil {
			return fmt.Errorf("update quota usage: %w", err)
		}
		return nil
	})
}

func (s *PGStore) GetIngestion(ctx context.Context, id string) (*Ingestion, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, selectIngestionSQL, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(payload, id)
}

func (s *PGStore) ListIngestions(ctx context.Context, owner string, limit int) ([]*Ingestion, error) {
	rows, err := s.pool.Query(ctx, listIngestionsSQL, owner, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, err
	}

	out := make([]*Ingestion, 0, len(payloads))
	for _, p := range payloads {
		rec, err := decode(p, "")
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *PGStore) UsedBytes(ctx context.Context, owner string) (int64, error) {
	var used int64
	err := s.pool.QueryRow(ctx, selectUsageSQL, owner).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return used, err
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool's connections.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func decode(payload []byte, id string) (*Ingestion, error) {
	var rec Ingestion
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode ingestion: %w", err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

// ResetIngestions deletes every record.
func (s *PGStore) ResetIngestions(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE ingestions")
	return err
}

// ResetQuotaUsage zeroes the usage of every owner.
func (s *PGStore) ResetQuotaUsage(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE quota_usage")
	return err
}
