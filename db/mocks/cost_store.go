package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"aws-cost-sync/pkg/focus"
)

type CostStore struct {
	mock.Mock
}

func (m *CostStore) UpsertCost(ctx context.Context, rec focus.CostRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *CostStore) ListCosts(ctx context.Context) ([]focus.CostRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]focus.CostRecord)
	return records, args.Error(1)
}

func (m *CostStore) ListDocuments(ctx context.Context) ([]focus.Document, error) {
	args := m.Called(ctx)
	docs, _ := args.Get(0).([]focus.Document)
	return docs, args.Error(1)
}

func (m *CostStore) InsertCosts(ctx context.Context, recs []focus.IngestedCostRecord) (int, error) {
	args := m.Called(ctx, recs)
	return args.Int(0), args.Error(1)
}

func (m *CostStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *CostStore) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// NewCostStore creates a CostStore mock whose expectations are asserted at test cleanup.
func NewCostStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *CostStore {
	m := &CostStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
