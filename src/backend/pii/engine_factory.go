package pii

import (
	"context"
	"fmt"

	detectors "github.com/hannes/yaak-redact/src/backend/pii/detectors"
)

// EngineConfig selects and configures the detector and anonymizer.
type EngineConfig struct {
	Detector              string
	Anonymizer            string
	PresidioAnalyzerURL   string
	PresidioAnonymizerURL string
	ModelDir              string
	LibraryPath           string
	MinConfidence         float64
	FakeSeed              int64
}

// NewEngineFactory returns a factory that builds the configured detector
// and anonymizer.
func NewEngineFactory(config EngineConfig) EngineFactory {
	return func(ctx context.Context) (*SharedEngine, error) {
		name := config.Detector
		if name == "" {
			name = detectors.DetectorNameRegex
		}
		detector, err := detectors.NewDetector(name, detectors.FactoryConfig{
			PresidioURL:   config.PresidioAnalyzerURL,
			ModelDir:      config.ModelDir,
			LibraryPath:   config.LibraryPath,
			MinConfidence: config.MinConfidence,
		})
		if err != nil {
			return nil, fmt.Errorf("create detector %s: %w", name, err)
		}

		anonymizer, err := NewAnonymizer(config.Anonymizer, AnonymizerConfig{
			PresidioURL: config.PresidioAnonymizerURL,
			FakeSeed:    config.FakeSeed,
		})
		if err != nil {
			_ = detector.Close()
			return nil, fmt.Errorf("create anonymizer: %w", err)
		}

		return &SharedEngine{Detector: detector, Anonymizer: anonymizer}, nil
	}
}
