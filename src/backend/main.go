package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/hannes/yaak-redact/src/backend/config"
	"github.com/hannes/yaak-redact/src/backend/server"
)

const TRUE = "true"

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file from current directory")
	} else {
		slog.Debug(".env file not found or could not be loaded", "error", err)
	}

	cfg := config.DefaultConfig()
	opts := registerFlags(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()

	if opts.configPath != "" {
		loadConfigFromFile(opts.configPath, cfg)
	}
	// Override configuration with environment variables
	loadConfigFromEnv(cfg)

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 2
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Warn("failed to initialize sentry", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if n, err := extractEmbeddedModelFiles(modelFiles, cfg.Engine.ModelDir); err != nil {
		logger.Warn("failed to extract embedded model files", "error", err)
	} else if n > 0 {
		logger.Info("extracted embedded model files", "count", n, "dir", cfg.Engine.ModelDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}
	defer a.Close()

	if flag.NArg() == 0 || opts.serve {
		return serve(ctx, cfg, a, logger)
	}
	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "only one file can be analyzed per run")
		usage()
		return 2
	}
	return runCLI(ctx, a, cfg, opts, flag.Arg(0), os.Stdout)
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage:
  yaak-redact [flags]          serve the HTTP API
  yaak-redact [flags] FILE     analyze FILE (pdf, csv or image)

Examples:
  yaak-redact -anonymize report.pdf
  yaak-redact -entities EMAIL_ADDRESS,PHONE_NUMBER -anonymize data.csv
  yaak-redact -sample-size 1000 -json report.json large.csv
  yaak-redact -format json scan.png > results.json

Flags:
`)
	flag.PrintDefaults()
}

func serve(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) int {
	srv, err := server.NewServer(cfg, a.proc, a.manager, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return 1
	}

	// warm up in the background so /health reports progress
	go func() {
		if _, err := a.manager.EnsureInitialized(ctx); err != nil {
			logger.Error("engine warm-up failed", "error", err)
		}
	}()
	go a.cleanupJobs(ctx, time.Duration(cfg.Database.CleanupHours)*time.Hour)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			return 1
		}
	}
	return 0
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(path string, cfg *config.Config) {
	// #nosec G304 - Config file path is controlled by application, not user input
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("failed to open config file", "path", path, "error", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close config file", "error", err)
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		slog.Warn("failed to decode config file", "path", path, "error", err)
	}
}

// loadConfigFromEnv loads configuration from environment variables
func loadConfigFromEnv(cfg *config.Config) {
	loadDatabaseConfig(cfg)
	loadServerConfig(cfg)
	loadEngineConfig(cfg)
	loadAnalysisConfig(cfg)
	loadLoggingConfig(cfg)
}

// loadDatabaseConfig loads database configuration from environment variables
func loadDatabaseConfig(cfg *config.Config) {
	if dbEnabled := os.Getenv("DB_ENABLED"); dbEnabled != "" {
		cfg.Database.Enabled = dbEnabled == TRUE
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.Username = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}

	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	if cleanupHours := os.Getenv("DB_CLEANUP_HOURS"); cleanupHours != "" {
		if hours, err := strconv.Atoi(cleanupHours); err == nil {
			cfg.Database.CleanupHours = hours
		}
	}
}

// loadServerConfig loads HTTP server configuration from environment variables
func loadServerConfig(cfg *config.Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	if folder := os.Getenv("DOWNLOAD_FOLDER"); folder != "" {
		cfg.Server.DownloadFolder = folder
	}

	if maxUpload := os.Getenv("MAX_UPLOAD_MB"); maxUpload != "" {
		if mb, err := strconv.Atoi(maxUpload); err == nil {
			cfg.Server.MaxUploadMB = mb
		}
	}

	if rps := os.Getenv("RATE_LIMIT"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.Server.RateLimit = v
		}
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cfg.SentryDSN = dsn
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
}

// loadEngineConfig loads detector and anonymizer configuration from environment variables
func loadEngineConfig(cfg *config.Config) {
	if detectorName := os.Getenv("DETECTOR_NAME"); detectorName != "" {
		cfg.Engine.Detector = detectorName
	}

	if anonymizer := os.Getenv("ANONYMIZER_NAME"); anonymizer != "" {
		cfg.Engine.Anonymizer = anonymizer
	}

	if language := os.Getenv("DETECTION_LANGUAGE"); language != "" {
		cfg.Engine.Language = language
	}

	if url := os.Getenv("PRESIDIO_ANALYZER_URL"); url != "" {
		cfg.Engine.PresidioAnalyzerURL = url
	}

	if url := os.Getenv("PRESIDIO_ANONYMIZER_URL"); url != "" {
		cfg.Engine.PresidioAnonymizerURL = url
	}

	if modelDir := os.Getenv("MODEL_DIR"); modelDir != "" {
		cfg.Engine.ModelDir = modelDir
	}

	if libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); libPath != "" {
		cfg.Engine.ONNXLibraryPath = libPath
	}

	if ocrLanguage := os.Getenv("OCR_LANGUAGE"); ocrLanguage != "" {
		cfg.OCR.Language = ocrLanguage
	}

	if ocrEnabled := os.Getenv("OCR_ENABLED"); ocrEnabled != "" {
		cfg.OCR.Enabled = ocrEnabled == TRUE
	}
}

// loadAnalysisConfig loads analysis defaults from environment variables
func loadAnalysisConfig(cfg *config.Config) {
	if threshold := os.Getenv("DEFAULT_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Analysis.DefaultThreshold = v
		}
	}

	if seed := os.Getenv("SAMPLE_SEED"); seed != "" {
		if v, err := strconv.ParseInt(seed, 10, 64); err == nil {
			cfg.Analysis.SampleSeed = v
		}
	}

	if maskColor := os.Getenv("MASK_COLOR"); maskColor != "" {
		cfg.Analysis.MaskColor = maskColor
	}
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig(cfg *config.Config) {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if logRequests := os.Getenv("LOG_REQUESTS"); logRequests != "" {
		cfg.Logging.LogRequests = logRequests == TRUE
	}

	if logPII := os.Getenv("LOG_PII_VALUES"); logPII != "" {
		cfg.Logging.LogPIIValues = logPII == TRUE
	}
}
