package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hannes/yaak-redact/src/backend/config"
	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
	"github.com/hannes/yaak-redact/src/backend/processor"
	"github.com/hannes/yaak-redact/src/backend/redact"
	"github.com/hannes/yaak-redact/src/backend/store"
)

// app holds the process-wide components shared by serve and CLI mode.
type app struct {
	manager *pii.EngineManager
	ocr     *extract.TesseractOCR
	jobs    store.JobStore
	proc    *processor.Processor
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	maskColor, err := redact.ParseColor(cfg.Analysis.MaskColor)
	if err != nil {
		return nil, err
	}

	a := &app{logger: logger}
	a.manager = pii.NewEngineManager(pii.NewEngineFactory(pii.EngineConfig{
		Detector:              cfg.Engine.Detector,
		Anonymizer:            cfg.Engine.Anonymizer,
		PresidioAnalyzerURL:   cfg.Engine.PresidioAnalyzerURL,
		PresidioAnonymizerURL: cfg.Engine.PresidioAnonymizerURL,
		ModelDir:              cfg.Engine.ModelDir,
		LibraryPath:           cfg.Engine.ONNXLibraryPath,
		MinConfidence:         cfg.Engine.MinConfidence,
		FakeSeed:              cfg.Engine.FakeSeed,
	}), cfg.Engine.Language, logger)

	var ocrEngine extract.OCREngine
	if cfg.OCR.Enabled {
		t, err := extract.NewTesseractOCR(cfg.OCR.Language)
		if err != nil {
			logger.Warn("OCR unavailable, image input disabled", "error", err)
		} else {
			a.ocr = t
			ocrEngine = t
		}
	}

	if cfg.Database.Enabled {
		pg, err := store.NewPostgresJobStore(ctx, store.DatabaseConfig{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			Database:     cfg.Database.Database,
			Username:     cfg.Database.Username,
			Password:     cfg.Database.Password,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxLifetime:  time.Duration(cfg.Database.MaxLifetime) * time.Second,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open job journal: %w", err)
		}
		a.jobs = pg
		logger.Info("database storage enabled", "host", cfg.Database.Host, "database", cfg.Database.Database)
	} else {
		a.jobs = store.NewInMemoryJobStore()
		logger.Info("using in-memory job journal")
	}

	a.proc = processor.New(processor.Config{
		Manager:      a.manager,
		OCR:          ocrEngine,
		Jobs:         a.jobs,
		MaskColor:    maskColor,
		MaskPadding:  cfg.Analysis.MaskPadding,
		SampleSeed:   cfg.Analysis.SampleSeed,
		LogPIIValues: cfg.Logging.LogPIIValues,
		Logger:       logger,
	})
	return a, nil
}

// cleanupJobs prunes the journal every hour until ctx is done.
func (a *app) cleanupJobs(ctx context.Context, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := a.jobs.CleanupOldJobs(ctx, retention)
		if err != nil {
			a.logger.Warn("job cleanup failed", "error", err)
		} else if n > 0 {
			a.logger.Info("cleaned up old jobs", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) Close() error {
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	if a.ocr != nil {
		errs = append(errs, a.ocr.Close())
	}
	if a.jobs != nil {
		errs = append(errs, a.jobs.Close())
	}
	return errors.Join(errs...)
}
