package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"intake/internal/domain"
)

// BatchRunner runs one intake batch.
type BatchRunner interface {
	RunBatch(ctx context.Context) (*domain.BatchSummary, error)
}

// RunTrigger starts operator-requested runs and reports the latest one.
type RunTrigger interface {
	Trigger(ctx context.Context) (*domain.BatchSummary, error)
	LastRun() *domain.BatchSummary
}

// IntakeWorker runs batches on a fixed interval and on demand. At most one batch
// runs at a time.
type IntakeWorker struct {
	runner   BatchRunner
	interval time.Duration
	logger   *zap.Logger
	runMu    sync.Mutex

	lastMu  sync.RWMutex
	lastRun *domain.BatchSummary
}

// NewIntakeWorker creates a new IntakeWorker.
func NewIntakeWorker(runner BatchRunner, interval time.Duration, logger *zap.Logger) *IntakeWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeWorker{runner: runner, interval: interval, logger: logger}
}

// Trigger runs one batch now. It returns domain.ErrRunInProgress when another
// batch is already running.
func (w *IntakeWorker) Trigger(ctx context.Context) (*domain.BatchSummary, error) {
	if !w.runMu.TryLock() {
		return nil, domain.ErrRunInProgress
	}
	defer w.runMu.Unlock()

	summary, err := w.runner.RunBatch(ctx)
	if summary != nil {
		w.lastMu.Lock()
		w.lastRun = summary
		w.lastMu.Unlock()
	}
	return summary, err
}

// LastRun returns the summary of the most recent batch, or nil before the first.
func (w *IntakeWorker) LastRun() *domain.BatchSummary {
	w.lastMu.RLock()
	defer w.lastMu.RUnlock()
	return w.lastRun
}

// Start runs the polling loop until ctx is canceled, then waits for any
// in-flight batch to finish.
func (w *IntakeWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("intakeWorker: started", zap.Duration("poll", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("intakeWorker: shutting down, waiting for in-flight batch")
			w.runMu.Lock()
			w.runMu.Unlock() //nolint:staticcheck // waits for an in-flight batch
			w.logger.Info("intakeWorker: shutdown complete")
			return
		case <-ticker.C:
			summary, err := w.Trigger(ctx)
			switch {
			case errors.Is(err, domain.ErrRunInProgress):
				w.logger.Debug("intakeWorker: previous batch still running, skipping tick")
			case err != nil:
				if ctx.Err() != nil {
					continue
				}
				w.logger.Error("intakeWorker: batch failed", zap.Error(err))
			case summary.Selected > 0:
				w.logger.Info("intakeWorker: batch complete",
					zap.Int("processed", summary.Processed),
					zap.Int("needs_review", summary.NeedsReview),
					zap.Int("errored", summary.Errored),
				)
			}
		}
	}
}
