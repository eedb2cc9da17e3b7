package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"intake/internal/config"
	"intake/internal/domain"
	"intake/internal/pipeline"
	"intake/internal/repository/postgres"
	"intake/internal/runexport"
	"intake/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	reportPath := flag.String("report", "", "write the batch summary to this .xlsx file")
	batchSize := flag.Int("batch-size", 0, "override pipeline.batch_size for this run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *batchSize > 0 {
		cfg.Pipeline.BatchSize = *batchSize
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Development()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	components, err := pipeline.Build(ctx, cfg, db, lg)
	if err != nil {
		return err
	}

	summary, runErr := components.Service.RunBatch(ctx)

	if summary != nil {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
		fmt.Println(string(out))

		if *reportPath != "" {
			if err := writeReport(*reportPath, summary); err != nil {
				return err
			}
			lg.Info("run report written", zap.String("path", *reportPath))
		}
	}

	if runErr != nil {
		return fmt.Errorf("batch run failed: %w", runErr)
	}
	return nil
}

func writeReport(path string, summary *domain.BatchSummary) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing report file: %w", cerr)
		}
	}()

	if err := runexport.WriteXLSX(f, summary); err != nil {
		return err
	}
	return nil
}
