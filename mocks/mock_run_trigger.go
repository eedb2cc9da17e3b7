package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"intake/internal/domain"
)

// MockRunTrigger is a mock implementation of service.RunTrigger.
type MockRunTrigger struct {
	mock.Mock
}

func (m *MockRunTrigger) Trigger(ctx context.Context) (*domain.BatchSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchSummary), args.Error(1)
}

func (m *MockRunTrigger) LastRun() *domain.BatchSummary {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.BatchSummary)
}
