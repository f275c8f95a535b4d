package pii

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

const (
	DetectorNameRegex     = "regex_detector"
	DetectorNamePresidio  = "presidio_detector"
	DetectorNameONNXModel = "onnx_model_detector"
)

// Detector is the detection engine contract. Implementations must be safe
// for concurrent Detect calls once constructed.
type Detector interface {
	GetName() string
	Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error)
	SupportedEntities(ctx context.Context, language string) ([]string, error)
	Close() error
}

// FactoryConfig carries the settings a detector factory may need.
type FactoryConfig struct {
	PresidioURL   string
	ModelDir      string
	LibraryPath   string
	MinConfidence float64
}

type NewDetectorFunc func(config FactoryConfig) (Detector, error)

var (
	factoriesMu       sync.RWMutex
	detectorFactories = make(map[string]NewDetectorFunc)
)

func RegisterDetectorFactory(name string, factory NewDetectorFunc) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	detectorFactories[name] = factory
}

func NewDetector(name string, config FactoryConfig) (Detector, error) {
	factoriesMu.RLock()
	factory, ok := detectorFactories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("detector factory not found for name: %s", name)
	}
	return factory(config)
}

// RegisteredDetectors returns the sorted names of all registered factories.
func RegisteredDetectors() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(detectorFactories))
	for name := range detectorFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterDetectorFactory(DetectorNameRegex, func(config FactoryConfig) (Detector, error) {
		return NewRegexDetector(DefaultPatterns()), nil
	})

	RegisterDetectorFactory(DetectorNamePresidio, func(config FactoryConfig) (Detector, error) {
		if config.PresidioURL == "" {
			return nil, fmt.Errorf("presidio analyzer URL is required for %s", DetectorNamePresidio)
		}
		return NewPresidioDetector(config.PresidioURL), nil
	})

	RegisterDetectorFactory(DetectorNameONNXModel, func(config FactoryConfig) (Detector, error) {
		if config.ModelDir == "" {
			return nil, fmt.Errorf("model directory is required for %s", DetectorNameONNXModel)
		}
		d, err := NewONNXModelDetector(config.ModelDir, config.LibraryPath, config.MinConfidence)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

func CloseDetector(detector Detector) error {
	return detector.Close()
}
