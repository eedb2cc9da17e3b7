package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"intake/internal/domain"
	"intake/internal/port"
)

// MockAttachmentExtractor is a mock implementation of port.AttachmentExtractor.
type MockAttachmentExtractor struct {
	mock.Mock
}

func (m *MockAttachmentExtractor) Supports(mimeType string) bool {
	args := m.Called(mimeType)
	return args.Bool(0)
}

func (m *MockAttachmentExtractor) ClassifyAndExtract(ctx context.Context, att domain.AttachmentDescriptor, data []byte) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, att, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}

// MockVisionExtractor is a mock implementation of port.VisionExtractor.
type MockVisionExtractor struct {
	mock.Mock
}

func (m *MockVisionExtractor) Extract(ctx context.Context, input port.VisionInput) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}

// MockInvoiceXMLParser is a mock implementation of port.InvoiceXMLParser.
type MockInvoiceXMLParser struct {
	mock.Mock
}

func (m *MockInvoiceXMLParser) Parse(data []byte) *domain.ExtractionResult {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.ExtractionResult)
}
