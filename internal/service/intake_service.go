package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/port"
)

const (
	persistTimeout   = 30 * time.Second
	defaultBatchSize = 5
	noAttachmentsMsg = "no processable attachments"
)

// IntakeConfig holds batch orchestration settings.
type IntakeConfig struct {
	BatchSize   int
	Concurrency int
}

// IntakeService defines the intake pipeline contract.
type IntakeService interface {
	// RunBatch claims and processes up to BatchSize eligible messages. When the
	// attachment store becomes unavailable the batch stops and the returned
	// summary is accompanied by an error wrapping domain.ErrStoreUnavailable.
	RunBatch(ctx context.Context) (*domain.BatchSummary, error)
	// RequeueMessage moves a message from error back to pending.
	RequeueMessage(ctx context.Context, id uuid.UUID) error
	GetMessage(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error)
}

// IntakeOption customizes an IntakeService.
type IntakeOption func(*intakeService)

// WithArchiver copies every downloaded attachment to object storage.
func WithArchiver(a *AttachmentArchiver) IntakeOption {
	return func(s *intakeService) { s.archiver = a }
}

// WithReportSender mails a summary after runs that need operator attention.
func WithReportSender(r port.ReportSender) IntakeOption {
	return func(s *intakeService) { s.reports = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) IntakeOption {
	return func(s *intakeService) { s.now = now }
}

type intakeService struct {
	repo      port.MessageRepository
	store     port.AttachmentStore
	extractor port.AttachmentExtractor
	archiver  *AttachmentArchiver
	reports   port.ReportSender
	cfg       IntakeConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewIntakeService creates a new IntakeService implementation.
func NewIntakeService(
	repo port.MessageRepository,
	store port.AttachmentStore,
	extractor port.AttachmentExtractor,
	cfg IntakeConfig,
	logger *zap.Logger,
	opts ...IntakeOption,
) IntakeService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > cfg.BatchSize {
		cfg.Concurrency = cfg.BatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &intakeService{
		repo:      repo,
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *intakeService) RunBatch(ctx context.Context) (*domain.BatchSummary, error) {
	summary := &domain.BatchSummary{StartedAt: s.now().UTC(), Outcomes: []domain.MessageOutcome{}}

	msgs, err := s.repo.ListEligible(ctx, s.cfg.BatchSize)
	if err != nil {
		summary.FinishedAt = s.now().UTC()
		return summary, fmt.Errorf("intakeService.RunBatch: %w", err)
	}
	summary.Selected = len(msgs)
	s.logger.Info("intakeService.RunBatch: batch started",
		zap.Int("selected", len(msgs)),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	// One slot per message; each goroutine writes only its own index.
	outcomes := make([]*domain.MessageOutcome, len(msgs))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

dispatch:
	for i := range msgs {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			break dispatch
		}
		if runCtx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = s.processMessage(runCtx, abort, msgs[i])
		}(i)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o != nil {
			summary.Add(*o)
		}
	}
	summary.FinishedAt = s.now().UTC()

	var runErr error
	if cause := context.Cause(runCtx); cause != nil {
		summary.Aborted = true
		summary.AbortReason = cause.Error()
		runErr = fmt.Errorf("intakeService.RunBatch: batch aborted: %w", cause)
	}

	s.logger.Info("intakeService.RunBatch: batch finished",
		zap.Int("selected", summary.Selected),
		zap.Int("processed", summary.Processed),
		zap.Int("needs_review", summary.NeedsReview),
		zap.Int("errored", summary.Errored),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("aborted", summary.Aborted),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	s.sendReport(ctx, summary)
	return summary, runErr
}

// processMessage claims one message, extracts it and writes its terminal state.
// A store outage aborts the whole run through abort.
func (s *intakeService) processMessage(ctx context.Context, abort context.CancelCauseFunc, msg domain.IntakeMessage) (outcome *domain.MessageOutcome) {
	log := s.logger.With(zap.String("message_id", msg.ID.String()))

	claimed, err := s.repo.Claim(ctx, msg.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrClaimLost) {
			log.Error("intakeService.processMessage: claim failed", zap.Error(err))
		} else {
			log.Info("intakeService.processMessage: claim lost, skipping")
		}
		return &domain.MessageOutcome{
			MessageID:    msg.ID,
			Subject:      msg.Subject,
			Status:       msg.Status,
			ErrorMessage: err.Error(),
			Skipped:      true,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", domain.ErrRecordProcessingFailed, r)
			log.Error("intakeService.processMessage: recovered from panic", zap.Any("panic", r))
			outcome = s.fail(ctx, claimed, err)
		}
	}()

	result, notes, err := s.extract(ctx, claimed)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			log.Error("intakeService.processMessage: attachment store unavailable, aborting batch", zap.Error(err))
			abort(err)
		}
		return s.fail(ctx, claimed, err)
	}

	if result == nil || result.Confidence <= 0 {
		result = domain.EmptyExtraction()
		if notes == "" {
			notes = noAttachmentsMsg
		}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return s.fail(ctx, claimed, fmt.Errorf("%w: encode result: %w", domain.ErrRecordProcessingFailed, err))
	}

	update := port.MessageUpdate{
		ID:            claimed.ID,
		Status:        domain.MessageStatusNeedsReview,
		ExtractedData: data,
		ErrorMessage:  domain.StringPtr(notes),
		ProcessedAt:   s.now().UTC(),
	}
	if err := s.persist(ctx, update); err != nil {
		log.Error("intakeService.processMessage: persisting result failed", zap.Error(err))
		return s.fail(ctx, claimed, fmt.Errorf("%w: persist result: %w", domain.ErrRecordProcessingFailed, err))
	}

	log.Info("intakeService.processMessage: message ready for review",
		zap.Float64("confidence", result.Confidence),
		zap.String("source_attachment", result.SourceAttachment),
	)
	return &domain.MessageOutcome{
		MessageID:    claimed.ID,
		Subject:      claimed.Subject,
		Status:       domain.MessageStatusNeedsReview,
		Result:       result,
		ErrorMessage: notes,
	}
}

// extract walks the attachments in stored order and returns the accepted result,
// or the best low-confidence one, along with the aggregated notes. Only a store
// outage or cancellation is returned as an error.
func (s *intakeService) extract(ctx context.Context, msg *domain.IntakeMessage) (*domain.ExtractionResult, string, error) {
	if len(msg.Attachments) == 0 {
		return nil, noAttachmentsMsg, nil
	}

	var (
		best        *domain.ExtractionResult
		notes       []string
		unsupported []string
	)
	for i, att := range msg.Attachments {
		if ctx.Err() != nil {
			return nil, "", context.Cause(ctx)
		}
		if !s.extractor.Supports(att.MimeType) {
			unsupported = append(unsupported, fmt.Sprintf("%s (%s)", att.Name, att.MimeType))
			continue
		}

		data, err := s.store.Fetch(ctx, att.Locator)
		if err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return nil, "", err
			}
			if ctx.Err() != nil {
				return nil, "", context.Cause(ctx)
			}
			s.logger.Warn("intakeService.extract: download failed",
				zap.String("message_id", msg.ID.String()),
				zap.String("attachment", att.Name),
				zap.Error(err),
			)
			notes = append(notes, fmt.Sprintf("attachment %s: download failed", att.Name))
			continue
		}
		if data == nil {
			notes = append(notes, fmt.Sprintf("attachment %s: download failed", att.Name))
			continue
		}

		if s.archiver != nil {
			s.archiver.Archive(ctx, msg.ID, i, att, data)
		}

		result, err := s.extractor.ClassifyAndExtract(ctx, att, data)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedAttachmentType) {
				unsupported = append(unsupported, fmt.Sprintf("%s (%s)", att.Name, att.MimeType))
				continue
			}
			notes = append(notes, fmt.Sprintf("attachment %s: %v", att.Name, err))
			continue
		}

		if result.Accepted() {
			best = result
			break
		}
		notes = append(notes, fmt.Sprintf("attachment %s: low confidence (%d%%)", att.Name, int(math.Round(result.Confidence*100))))
		if best == nil || result.Confidence > best.Confidence {
			best = result
		}
	}

	if len(unsupported) > 0 {
		notes = append(notes, "unsupported types: "+strings.Join(unsupported, ", "))
	}
	return best, strings.Join(notes, "; "), nil
}

// fail marks a claimed message as error with a readable message.
func (s *intakeService) fail(ctx context.Context, msg *domain.IntakeMessage, cause error) *domain.MessageOutcome {
	text := cause.Error()
	update := port.MessageUpdate{
		ID:           msg.ID,
		Status:       domain.MessageStatusError,
		ErrorMessage: &text,
		ProcessedAt:  s.now().UTC(),
	}
	if err := s.persist(ctx, update); err != nil {
		s.logger.Error("intakeService.fail: marking message as error failed",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
	}
	return &domain.MessageOutcome{
		MessageID:    msg.ID,
		Subject:      msg.Subject,
		Status:       domain.MessageStatusError,
		ErrorMessage: text,
	}
}

// persist writes the terminal state even when the run context was canceled, so
// no message is left in processing.
func (s *intakeService) persist(ctx context.Context, update port.MessageUpdate) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return s.repo.CompleteProcessing(ctx, update)
}

func (s *intakeService) sendReport(ctx context.Context, summary *domain.BatchSummary) {
	if s.reports == nil || !summary.NeedsAttention() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.reports.SendBatchReport(ctx, summary); err != nil {
		s.logger.Warn("intakeService.RunBatch: sending batch report failed", zap.Error(err))
	}
}

func (s *intakeService) RequeueMessage(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Requeue(ctx, id); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("intakeService.RequeueMessage: %w", err)
	}
	s.logger.Info("intakeService.RequeueMessage: message requeued", zap.String("message_id", id.String()))
	return nil
}

func (s *intakeService) GetMessage(ctx context.Context, id uuid.UUID) (*domain.IntakeMessage, error) {
	msg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("intakeService.GetMessage: %w", err)
	}
	return msg, nil
}
