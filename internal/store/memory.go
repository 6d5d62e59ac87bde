package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps records in process memory. Useful for tests and for
// running without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	ingestions map[string]*Ingestion
	used       map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ingestions: make(map[string]*Ingestion),
		used:       make(map[string]int64),
	}
}

func (s *MemoryStore) SaveIngestion(_ context.Context, rec *Ingestion) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("ingestion id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ingestions[rec.ID]; exists {
		return fmt.Errorf("ingestion %s already exists", rec.ID)
	}
	s.ingestions[rec.ID] = clone(rec)
	if rec.counts() {
		s.used[rec.Owner] += rec.TotalBytes
	}
	return nil
}

func (s *MemoryStore) GetIngestion(_ context.Context, id string) (*Ingestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.ingestions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (s *MemoryStore) ListIngestions(_ context.Context, owner string, limit int) ([]*Ingestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Ingestion
	for _, rec := range s.ingestions {
		if rec.Owner == owner {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UsedBytes(_ context.Context, owner string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used[owner], nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

func clone(rec *Ingestion) *Ingestion {
	c := *rec
	c.Files = append(c.Files[:0:0], rec.Files...)
	return &c
}

// ResetIngestions deletes every record.
func (s *MemoryStore) ResetIngestions(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingestions = make(map[string]*Ingestion)
	return nil
}

// ResetQuotaUsage zeroes the usage of every owner.
func (s *MemoryStore) ResetQuotaUsage(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = make(map[string]int64)
	return nil
}
