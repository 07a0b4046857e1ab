package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"aws-cost-sync/internal/costexplorer"
)

type Querier struct {
	mock.Mock
}

func (m *Querier) GetCostAndUsage(ctx context.Context, q costexplorer.Query) ([]costexplorer.ResultByTime, error) {
	args := m.Called(ctx, q)
	results, _ := args.Get(0).([]costexplorer.ResultByTime)
	return results, args.Error(1)
}

// NewQuerier creates a Querier mock whose expectations are asserted at test cleanup.
func NewQuerier(t interface {
	mock.TestingT
	Cleanup(func())
}) *Querier {
	m := &Querier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
