package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageOutcome records how one claimed message ended a batch run.
type MessageOutcome struct {
	MessageID    uuid.UUID         `json:"message_id"`
	Subject      string            `json:"subject"`
	Status       MessageStatus     `json:"status"`
	Result       *ExtractionResult `json:"result,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Skipped      bool              `json:"skipped,omitempty"`
}

// BatchSummary is the accumulator returned by one batch run.
type BatchSummary struct {
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Selected    int              `json:"selected"`
	Processed   int              `json:"processed"`
	NeedsReview int              `json:"needs_review"`
	Errored     int              `json:"errored"`
	Skipped     int              `json:"skipped"`
	Aborted     bool             `json:"aborted"`
	AbortReason string           `json:"abort_reason,omitempty"`
	Outcomes    []MessageOutcome `json:"outcomes"`
}

// Add folds one outcome into the summary counters.
func (s *BatchSummary) Add(o MessageOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.Skipped {
		s.Skipped++
		return
	}
	s.Processed++
	switch o.Status {
	case MessageStatusNeedsReview:
		s.NeedsReview++
	case MessageStatusError:
		s.Errored++
	}
}

// NeedsAttention reports whether an operator should be told about this run:
// it was aborted, a message ended in error, or a claim was lost.
func (s *BatchSummary) NeedsAttention() bool {
	return s.Aborted || s.Errored > 0 || s.Skipped > 0
}
