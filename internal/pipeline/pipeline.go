package pipeline

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"intake/internal/config"
	"intake/internal/email/noop"
	"intake/internal/email/ses"
	"intake/internal/extraction"
	"intake/internal/extraction/gemini"
	"intake/internal/extraction/nfe"
	imapstore "intake/internal/mailbox/imap"
	"intake/internal/port"
	"intake/internal/repository/postgres"
	"intake/internal/service"
	s3storage "intake/internal/storage/s3"
)

// Components are the long-lived pieces shared by the server and the one-shot runner.
type Components struct {
	Service service.IntakeService
	Mailbox *imapstore.Store
}

// Build wires the repository, attachment store, extractors and optional
// archive and notifier into an IntakeService.
func Build(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (*Components, error) {
	repo := postgres.NewMessageRepo(db)
	mailbox := imapstore.NewStore(&cfg.Mailbox, logger.Named("imap"))

	dispatcher := extraction.NewDispatcher(
		gemini.NewClient(&cfg.Vision, logger.Named("gemini")),
		nfe.NewParser(logger.Named("nfe")),
		logger.Named("dispatcher"),
	)

	opts := []service.IntakeOption{}

	if cfg.Archive.Enabled {
		storage, err := s3storage.NewS3Client(ctx, &cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		opts = append(opts, service.WithArchiver(
			service.NewAttachmentArchiver(storage, cfg.Archive.Bucket, cfg.Archive.Prefix, logger.Named("archive")),
		))
	}

	sender, err := newReportSender(ctx, &cfg.Notify, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, service.WithReportSender(sender))

	svc := service.NewIntakeService(repo, mailbox, dispatcher, service.IntakeConfig{
		BatchSize:   cfg.Pipeline.BatchSize,
		Concurrency: cfg.Pipeline.Concurrency,
	}, logger.Named("intake"), opts...)

	return &Components{Service: svc, Mailbox: mailbox}, nil
}

func newReportSender(ctx context.Context, cfg *config.NotifyConfig, logger *zap.Logger) (port.ReportSender, error) {
	switch cfg.Provider {
	case "ses":
		sender, err := ses.NewSESSender(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES sender: %w", err)
		}
		logger.Info("batch reports via SES", zap.Strings("recipients", cfg.Recipients))
		return sender, nil
	case "noop", "":
		return noop.NewNoopSender(logger.Named("notify")), nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Provider)
	}
}
