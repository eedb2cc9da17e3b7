package port

import (
	"context"

	"intake/internal/domain"
)

// ReportSender delivers batch run reports to operators.
type ReportSender interface {
	SendBatchReport(ctx context.Context, summary *domain.BatchSummary) error
}
