package port

import (
	"context"

	"intake/internal/domain"
)

// AttachmentStore downloads raw attachment bytes from the inbound mailbox.
// Fetch returns (nil, nil) when the download succeeds but yields no bytes.
type AttachmentStore interface {
	Fetch(ctx context.Context, locator domain.AttachmentLocator) ([]byte, error)
}
