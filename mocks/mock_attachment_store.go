package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"intake/internal/domain"
)

// MockAttachmentStore is a mock implementation of port.AttachmentStore.
type MockAttachmentStore struct {
	mock.Mock
}

func (m *MockAttachmentStore) Fetch(ctx context.Context, locator domain.AttachmentLocator) ([]byte, error) {
	args := m.Called(ctx, locator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
