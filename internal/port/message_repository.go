package port

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"intake/internal/domain"
)

// MessageUpdate is the terminal write for one processed message. All fields are
// persisted together.
type MessageUpdate struct {
	ID            uuid.UUID
	Status        domain.MessageStatus
	ExtractedData json.RawMessage
	ErrorMessage  *string
	ProcessedAt   time.Time
}

// MessageRepository abstracts the intake work queue.
type MessageRepository interface {
	// ListEligible returns up to limit messages in pending or error status, oldest first.
	ListEligible(ctx context.Context, limit int) ([]domain.IntakeMessage, error)
	// Claim atomically moves a pending/error message to processing. It returns
	// domain.ErrClaimLost when another worker got there first.
	Claim(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error)
	CompleteProcessing(ctx context.Context, update MessageUpdate) error
	// Requeue moves an error message back to pending.
	Requeue(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error)
}
