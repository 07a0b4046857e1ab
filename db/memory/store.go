// Package memory provides an in-process cost store for tests and dry runs
package memory

import (
	"context"
	"sync"

	costerrors "aws-cost-sync/pkg/errors"
	"aws-cost-sync/pkg/focus"
)

// Store keeps records in insertion order, one per natural key
type Store struct {
	mu       sync.RWMutex
	index    map[focus.NaturalKey]int
	records  []focus.CostRecord
	ingested []focus.IngestedCostRecord
}

func NewStore() *Store {
	return &Store{index: make(map[focus.NaturalKey]int)}
}

func (s *Store) UpsertCost(ctx context.Context, rec focus.CostRecord) error {
	if err := ctx.Err(); err != nil {
		return costerrors.NewStorageError("upsert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	if i, ok := s.index[key]; ok {
		s.records[i] = rec
		return nil
	}
	s.index[key] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) ListCosts(ctx context.Context) ([]focus.CostRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, costerrors.NewStorageError("list", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]focus.CostRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]focus.Document, error) {
	recs, err := s.ListCosts(ctx)
	if err != nil {
		return nil, err
	}
	return focus.Documents(recs), nil
}

func (s *Store) InsertCosts(ctx context.Context, recs []focus.IngestedCostRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, costerrors.NewStorageError("insert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ingested = append(s.ingested, recs...)
	return len(recs), nil
}

// Ingested returns a copy of everything written by InsertCosts
func (s *Store) Ingested() []focus.IngestedCostRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]focus.IngestedCostRecord, len(s.ingested))
	copy(out, s.ingested)
	return out
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close(ctx context.Context) error { return nil }
