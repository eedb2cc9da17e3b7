package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"intake/internal/domain"
	"intake/internal/port"
)

// MockMessageRepo is a mock implementation of port.MessageRepository.
type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) ListEligible(ctx context.Context, limit int) ([]domain.IntakeMessage, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.IntakeMessage), args.Error(1)
}

func (m *MockMessageRepo) Claim(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IntakeMessage), args.Error(1)
}

func (m *MockMessageRepo) CompleteProcessing(ctx context.Context, update port.MessageUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockMessageRepo) Requeue(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IntakeMessage), args.Error(1)
}
