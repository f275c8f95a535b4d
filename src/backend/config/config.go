package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ServerConfig holds HTTP front end options
type ServerConfig struct {
	Port              string  `json:"port"`                // Listen address, ":PORT"
	DownloadFolder    string  `json:"download_folder"`     // Where masked files are written for download
	MaxUploadMB       int     `json:"max_upload_mb"`       // Upload size limit
	RateLimit         float64 `json:"rate_limit"`          // Requests per second per client, 0 disables
	RateBurst         int     `json:"rate_burst"`          // Burst size for the rate limiter
	ReadTimeoutSec    int     `json:"read_timeout_sec"`    // http.Server read timeout
	WriteTimeoutSec   int     `json:"write_timeout_sec"`   // http.Server write timeout
	RequestTimeoutSec int     `json:"request_timeout_sec"` // Deadline for processing one document
}

// EngineConfig selects the detection and anonymization engines
type EngineConfig struct {
	Detector              string  `json:"detector"`                // regex_detector, presidio_detector, onnx_model_detector
	Language              string  `json:"language"`                // Detection language
	Anonymizer            string  `json:"anonymizer"`              // replace, fake, presidio
	PresidioAnalyzerURL   string  `json:"presidio_analyzer_url"`
	PresidioAnonymizerURL string  `json:"presidio_anonymizer_url"`
	ModelDir              string  `json:"model_dir"`               // ONNX model directory
	ONNXLibraryPath       string  `json:"onnx_library_path"`       // onnxruntime shared library
	MinConfidence         float64 `json:"min_confidence"`          // Token confidence floor for the ONNX model
	FakeSeed              int64   `json:"fake_seed"`               // Seed for fake replacements, 0 = time based
}

// AnalysisConfig holds detection and redaction defaults
type AnalysisConfig struct {
	DefaultThreshold float64 `json:"default_threshold"`
	SampleSeed       int64   `json:"sample_seed"`
	MaskColor        string  `json:"mask_color"`        // SVG color name or #rrggbb
	MaskPadding      int     `json:"mask_padding"`      // Pixels added around each masked box
}

// OCRConfig holds OCR options
type OCRConfig struct {
	Enabled  bool   `json:"enabled"`
	Language string `json:"language"` // Tesseract languages, e.g. "eng+deu"
}

// DatabaseConfig holds database configuration for the job journal
type DatabaseConfig struct {
	Enabled      bool   `json:"enabled"`        // Whether to use database storage
	Host         string `json:"host"`           // Database host
	Port         int    `json:"port"`           // Database port
	Database     string `json:"database"`       // Database name
	Username     string `json:"username"`       // Database username
	Password     string `json:"password"`       // Database password
	SSLMode      string `json:"ssl_mode"`       // SSL mode (disable, require, etc.)
	MaxOpenConns int    `json:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `json:"max_idle_conns"` // Maximum idle connections
	MaxLifetime  int    `json:"max_lifetime"`   // Connection max lifetime in seconds
	CleanupHours int    `json:"cleanup_hours"`  // Hours after which to cleanup old jobs
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level        string `json:"level"`          // debug, info, warn, error
	Format       string `json:"format"`         // text or json
	LogRequests  bool   `json:"log_requests"`   // Log one line per HTTP request
	LogPIIValues bool   `json:"log_pii_values"` // Log detected values (never enable in production)
}

// Config holds all configuration for the redaction service
type Config struct {
	Server      ServerConfig   `json:"server"`
	Engine      EngineConfig   `json:"engine"`
	Analysis    AnalysisConfig `json:"analysis"`
	OCR         OCRConfig      `json:"ocr"`
	Database    DatabaseConfig `json:"database"`
	Logging     LoggingConfig  `json:"logging"`
	SentryDSN   string         `json:"sentry_dsn"`
	Environment string         `json:"environment"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              ":8000",
			DownloadFolder:    "downloaded",
			MaxUploadMB:       50,
			RateLimit:         10,
			RateBurst:         20,
			ReadTimeoutSec:    60,
			WriteTimeoutSec:   300,
			RequestTimeoutSec: 240,
		},
		Engine: EngineConfig{
			Detector:      "regex_detector",
			Language:      "en",
			Anonymizer:    "replace",
			ModelDir:      "model/quantized",
			MinConfidence: 0.5,
		},
		Analysis: AnalysisConfig{
			DefaultThreshold: 0.35,
			SampleSeed:       42,
			MaskColor:        "black",
			MaskPadding:      2,
		},
		OCR: OCRConfig{
			Enabled:  true,
			Language: "eng",
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "yaak",
			Username:     "postgres",
			Password:     "",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxLifetime:  300,
			CleanupHours: 24 * 7,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "text",
			LogRequests: true,
		},
		Environment: "development",
	}
}

var (
	knownDetectors   = []string{"regex_detector", "presidio_detector", "onnx_model_detector"}
	knownAnonymizers = []string{"replace", "fake", "presidio"}
)

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(validatePort(c.Server.Port, "Server.Port"))
	if c.Server.DownloadFolder == "" {
		add(errors.New("Server.DownloadFolder: folder cannot be empty"))
	}
	if c.Server.MaxUploadMB <= 0 {
		add(fmt.Errorf("Server.MaxUploadMB: must be positive (current value: %d)", c.Server.MaxUploadMB))
	}
	if c.Server.RateLimit < 0 {
		add(fmt.Errorf("Server.RateLimit: cannot be negative (current value: %v)", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		add(fmt.Errorf("Server.RateBurst: must be at least 1 when rate limiting is enabled (current value: %d)", c.Server.RateBurst))
	}

	add(validateOneOf(c.Engine.Detector, knownDetectors, "Engine.Detector"))
	add(validateOneOf(c.Engine.Anonymizer, knownAnonymizers, "Engine.Anonymizer"))
	if c.Engine.Detector == "presidio_detector" {
		add(validateURL(c.Engine.PresidioAnalyzerURL, "Engine.PresidioAnalyzerURL"))
	}
	if c.Engine.Anonymizer == "presidio" {
		add(validateURL(c.Engine.PresidioAnonymizerURL, "Engine.PresidioAnonymizerURL"))
	}
	if c.Engine.Detector == "onnx_model_detector" && c.Engine.ModelDir == "" {
		add(errors.New("Engine.ModelDir: model directory cannot be empty for onnx_model_detector"))
	}
	add(validateScore(c.Engine.MinConfidence, "Engine.MinConfidence"))

	add(validateScore(c.Analysis.DefaultThreshold, "Analysis.DefaultThreshold"))
	if c.Analysis.MaskPadding < 0 {
		add(fmt.Errorf("Analysis.MaskPadding: cannot be negative (current value: %d)", c.Analysis.MaskPadding))
	}
	if c.Analysis.MaskColor == "" {
		add(errors.New("Analysis.MaskColor: color cannot be empty"))
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			add(errors.New("Database.Host: host cannot be empty"))
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			add(fmt.Errorf("Database.Port: port must be between 1 and 65535 (current value: %d)", c.Database.Port))
		}
	}

	add(validateOneOf(strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "error"}, "Logging.Level"))
	add(validateOneOf(strings.ToLower(c.Logging.Format), []string{"text", "json"}, "Logging.Format"))

	return errors.Join(errs...)
}

func validatePort(port, fieldName string) error {
	if port == "" {
		return fmt.Errorf("%s: port cannot be empty", fieldName)
	}
	if !strings.HasPrefix(port, ":") {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	n, err := strconv.Atoi(port[1:])
	if err != nil {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s: port must be between 1 and 65535 (current value: %d)", fieldName, n)
	}
	return nil
}

func validateURL(raw, fieldName string) error {
	if raw == "" {
		return fmt.Errorf("%s: URL cannot be empty", fieldName)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: URL must be absolute http(s) (current value: %s)", fieldName, raw)
	}
	return nil
}

func validateScore(v float64, fieldName string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s: must be between 0 and 1 (current value: %v)", fieldName, v)
	}
	return nil
}

func validateOneOf(v string, allowed []string, fieldName string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: must be one of %s (current value: %s)", fieldName, strings.Join(allowed, ", "), v)
}
