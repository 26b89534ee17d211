package records

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/joelkehle/kontrata/internal/contract"
)

var ErrNotFound = errors.New("contract record not found")

type Store interface {
	Put(ctx context.Context, rec contract.Record) error
	Get(ctx context.Context, id string) (contract.Record, error)
	List(ctx context.Context) ([]contract.Record, error)
}

// MemoryStore is an in-process Store. When maxRecords is positive the
// oldest records are evicted past that count.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]contract.Record
	maxRecords int
}

func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords < 0 {
		maxRecords = 0
	}
	return &MemoryStore{records: map[string]contract.Record{}, maxRecords: maxRecords}
}

func (s *MemoryStore) Put(_ context.Context, rec contract.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = cloneRecord(rec)
	s.evictLocked()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (contract.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return contract.Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List returns records newest first.
func (s *MemoryStore) List(_ context.Context) ([]contract.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contract.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	SortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// evictLocked must be called with mu held.
func (s *MemoryStore) evictLocked() {
	if s.maxRecords <= 0 || len(s.records) <= s.maxRecords {
		return
	}
	all := make([]contract.Record, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	for _, rec := range all[:len(all)-s.maxRecords] {
		slog.Info("contract_record_evicted", "contract_id", rec.ID, "created_at", rec.CreatedAt)
		delete(s.records, rec.ID)
	}
}

func SortNewestFirst(recs []contract.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

func cloneRecord(rec contract.Record) contract.Record {
	rec.Details = rec.Details.Clone()
	rec.OriginalDetails = rec.OriginalDetails.Clone()
	rec.SpecialClauses = append([]string(nil), rec.SpecialClauses...)
	rec.Validation.Errors = append([]string(nil), rec.Validation.Errors...)
	rec.Validation.Warnings = append([]string(nil), rec.Validation.Warnings...)
	rec.Validation.AppliedDefault = append([]string(nil), rec.Validation.AppliedDefault...)
	return rec
}
