package extraction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/port"
)

type handlerFunc func(ctx context.Context, att domain.AttachmentDescriptor, data []byte) (*domain.ExtractionResult, error)

// route pairs a MIME substring with the extractor that handles it.
type route struct {
	token     string
	extractor domain.Extractor
	handle    handlerFunc
}

// Dispatcher routes attachments to an extractor by declared MIME type. Routes are
// evaluated in order: image, pdf, xml.
type Dispatcher struct {
	routes []route
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher over the vision client and the NF-e parser.
func NewDispatcher(vision port.VisionExtractor, invoices port.InvoiceXMLParser, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{logger: logger}
	d.routes = []route{
		{token: "image", extractor: domain.ExtractorVisionImage, handle: visionHandler(vision, port.MediaImage)},
		{token: "pdf", extractor: domain.ExtractorVisionPDF, handle: visionHandler(vision, port.MediaPDF)},
		{token: "xml", extractor: domain.ExtractorNFeXML, handle: func(_ context.Context, _ domain.AttachmentDescriptor, data []byte) (*domain.ExtractionResult, error) {
			return invoices.Parse(data), nil
		}},
	}
	return d
}

func visionHandler(vision port.VisionExtractor, kind port.MediaKind) handlerFunc {
	return func(ctx context.Context, att domain.AttachmentDescriptor, data []byte) (*domain.ExtractionResult, error) {
		return vision.Extract(ctx, port.VisionInput{Data: data, Kind: kind, MimeType: att.MimeType})
	}
}

// Route returns the extractor a MIME type would be sent to.
func (d *Dispatcher) Route(mimeType string) (domain.Extractor, bool) {
	r, ok := d.match(mimeType)
	if !ok {
		return "", false
	}
	return r.extractor, true
}

// Supports reports whether any extractor accepts the MIME type.
func (d *Dispatcher) Supports(mimeType string) bool {
	_, ok := d.match(mimeType)
	return ok
}

func (d *Dispatcher) match(mimeType string) (route, bool) {
	mt := strings.ToLower(mimeType)
	for _, r := range d.routes {
		if strings.Contains(mt, r.token) {
			return r, true
		}
	}
	return route{}, false
}

// ClassifyAndExtract runs the matching extractor and stamps provenance on the result.
// Unroutable attachments yield *UnsupportedAttachmentError.
func (d *Dispatcher) ClassifyAndExtract(ctx context.Context, att domain.AttachmentDescriptor, data []byte) (*domain.ExtractionResult, error) {
	r, ok := d.match(att.MimeType)
	if !ok {
		return nil, &UnsupportedAttachmentError{Name: att.Name, MimeType: att.MimeType}
	}

	d.logger.Debug("dispatcher.ClassifyAndExtract: routing attachment",
		zap.String("attachment", att.Name),
		zap.String("mime_type", att.MimeType),
		zap.String("extractor", string(r.extractor)),
		zap.Int("bytes", len(data)),
	)

	result, err := r.handle(ctx, att, data)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%s returned no result", r.extractor)
	}
	result.Extractor = r.extractor
	result.SourceAttachment = att.Name
	return result, nil
}
