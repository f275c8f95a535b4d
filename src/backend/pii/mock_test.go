package pii

import (
	"context"
	"errors"
	"sync"

	detectors "github.com/hannes/yaak-redact/src/backend/pii/detectors"
)

// mockDetector implements detectors.Detector for testing
type mockDetector struct {
	mu        sync.Mutex
	entities  []detectors.Entity
	err       error
	warmErr   error
	supported []string
	calls     int
	closed    bool
	lastInput detectors.DetectorInput
}

func (m *mockDetector) GetName() string { return "mock_detector" }

func (m *mockDetector) Detect(ctx context.Context, input detectors.DetectorInput) (detectors.DetectorOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastInput = input
	if input.Text == WarmUpText && m.warmErr != nil {
		return detectors.DetectorOutput{}, m.warmErr
	}
	if m.err != nil {
		return detectors.DetectorOutput{}, m.err
	}
	return detectors.DetectorOutput{Text: input.Text, Entities: m.entities}, nil
}

func (m *mockDetector) SupportedEntities(ctx context.Context, language string) ([]string, error) {
	return m.supported, nil
}

func (m *mockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockDetector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type failingAnonymizer struct{}

func (failingAnonymizer) Name() string { return "failing" }

func (failingAnonymizer) Anonymize(ctx context.Context, text string, findings []Finding) (string, error) {
	return "", errors.New("anonymizer exploded")
}

// readyManager returns an initialized manager around the given detector.
func readyManager(detector *mockDetector, anonymizer Anonymizer) *EngineManager {
	if anonymizer == nil {
		anonymizer = ReplaceAnonymizer{}
	}
	m := NewEngineManager(func(ctx context.Context) (*SharedEngine, error) {
		return &SharedEngine{Detector: detector, Anonymizer: anonymizer}, nil
	}, "en", nil)
	if _, err := m.EnsureInitialized(context.Background()); err != nil {
		panic(err)
	}
	return m
}
