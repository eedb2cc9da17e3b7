package port

import (
	"context"

	"intake/internal/domain"
)

// MediaKind selects the vision prompt variant.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaPDF   MediaKind = "pdf"
)

// VisionInput carries one attachment payload for the vision model.
type VisionInput struct {
	Data     []byte
	Kind     MediaKind
	MimeType string
}

// VisionExtractor wraps a remote multimodal model.
type VisionExtractor interface {
	Extract(ctx context.Context, input VisionInput) (*domain.ExtractionResult, error)
}

// InvoiceXMLParser parses structured electronic invoices. It never fails; problems
// are reported through the result's confidence and description.
type InvoiceXMLParser interface {
	Parse(data []byte) *domain.ExtractionResult
}

// AttachmentExtractor routes one attachment to the right extractor.
type AttachmentExtractor interface {
	Supports(mimeType string) bool
	ClassifyAndExtract(ctx context.Context, att domain.AttachmentDescriptor, data []byte) (*domain.ExtractionResult, error)
}
