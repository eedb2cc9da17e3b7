package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"intake/internal/domain"
	"intake/internal/port"
)

// messageColumns maps a NULL extracted_data to JSON null so it scans into json.RawMessage.
const messageColumns = `id, subject, sender, received_at, attachments, status,
	COALESCE(extracted_data, 'null'::jsonb) AS extracted_data,
	error_message, processed_at, created_at, updated_at`

type messageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo creates a new PostgreSQL-backed MessageRepository.
func NewMessageRepo(db *sqlx.DB) port.MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) ListEligible(ctx context.Context, limit int) ([]domain.IntakeMessage, error) {
	var msgs []domain.IntakeMessage
	query := `SELECT ` + messageColumns + ` FROM intake_messages
		WHERE status IN ('pending', 'error')
		ORDER BY created_at ASC, id ASC
		LIMIT $1`
	if err := r.db.SelectContext(ctx, &msgs, query, limit); err != nil {
		return nil, fmt.Errorf("messageRepo.ListEligible: %w", err)
	}
	return msgs, nil
}

// Claim is a single conditional UPDATE, so two runners can never both win.
func (r *messageRepo) Claim(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error) {
	var msg domain.IntakeMessage
	query := `UPDATE intake_messages
		SET status = 'processing', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'error')
		RETURNING ` + messageColumns
	err := r.db.GetContext(ctx, &msg, query, id, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrClaimLost
		}
		return nil, fmt.Errorf("messageRepo.Claim: %w", err)
	}
	return &msg, nil
}

func (r *messageRepo) CompleteProcessing(ctx context.Context, update port.MessageUpdate) error {
	var extracted interface{}
	if len(update.ExtractedData) > 0 {
		extracted = []byte(update.ExtractedData)
	}
	processedAt := update.ProcessedAt.UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE intake_messages
		SET status = $2, extracted_data = $3, error_message = $4, processed_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'processing'`,
		update.ID, update.Status, extracted, update.ErrorMessage, processedAt)
	if err != nil {
		return fmt.Errorf("messageRepo.CompleteProcessing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("messageRepo.CompleteProcessing: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("messageRepo.CompleteProcessing: %s is not processing: %w", update.ID, domain.ErrInvalidTransition)
	}
	return nil
}

func (r *messageRepo) Requeue(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE intake_messages SET status = 'pending', updated_at = $2
		WHERE id = $1 AND status = 'error'`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("messageRepo.Requeue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("messageRepo.Requeue: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM intake_messages WHERE id = $1)", id); err != nil {
		return fmt.Errorf("messageRepo.Requeue: %w", err)
	}
	if !exists {
		return domain.ErrMessageNotFound
	}
	return domain.ErrInvalidTransition
}

func (r *messageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error) {
	var msg domain.IntakeMessage
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM intake_messages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("messageRepo.GetByID: %w", err)
	}
	return &msg, nil
}
