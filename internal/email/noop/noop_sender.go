package noop

import (
	"context"

	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/port"
)

type noopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a ReportSender that only logs the batch summary.
func NewNoopSender(logger *zap.Logger) port.ReportSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &noopSender{logger: logger}
}

func (s *noopSender) SendBatchReport(_ context.Context, summary *domain.BatchSummary) error {
	s.logger.Info("[NOOP EMAIL] batch report",
		zap.Int("selected", summary.Selected),
		zap.Int("processed", summary.Processed),
		zap.Int("needs_review", summary.NeedsReview),
		zap.Int("errored", summary.Errored),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("aborted", summary.Aborted),
		zap.String("abort_reason", summary.AbortReason),
	)
	return nil
}
