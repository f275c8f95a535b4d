package pii

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	detectors "github.com/hannes/yaak-redact/src/backend/pii/detectors"
)

// WarmUpText is run through the detector once before the engine is
// reported ready.
const WarmUpText = "John Doe john@example.com"

// SharedEngine is the process-wide detection and anonymization engine.
type SharedEngine struct {
	Detector   detectors.Detector
	Anonymizer Anonymizer
}

// EngineFactory builds a SharedEngine. It is called at most once per
// EngineManager.
type EngineFactory func(ctx context.Context) (*SharedEngine, error)

// EngineManager owns the single SharedEngine of the process. The first
// EnsureInitialized call builds and warms it up; every later call returns
// the same instance. A failed construction is not retried.
type EngineManager struct {
	factory  EngineFactory
	language string
	logger   *slog.Logger

	ready   atomic.Bool
	mu      sync.Mutex
	engine  *SharedEngine
	initErr error
	closed  bool
}

// NewEngineManager creates a manager; nothing is built until
// EnsureInitialized is called.
func NewEngineManager(factory EngineFactory, language string, logger *slog.Logger) *EngineManager {
	if logger == nil {
		logger = slog.Default()
	}
	if language == "" {
		language = "en"
	}
	return &EngineManager{
		factory:  factory,
		language: language,
		logger:   logger.With("component", "engine_manager"),
	}
}

// Language is the detection language passed to the engine.
func (m *EngineManager) Language() string {
	return m.language
}

// EnsureInitialized returns the shared engine, constructing it on first use.
func (m *EngineManager) EnsureInitialized(ctx context.Context) (*SharedEngine, error) {
	if m.ready.Load() {
		return m.engine, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready.Load() {
		return m.engine, nil
	}
	if m.closed {
		return nil, NewError(KindEngineNotReady, "ensure_initialized", errors.New("engine closed"))
	}
	if m.initErr != nil {
		return nil, NewError(KindEngineNotReady, "ensure_initialized", m.initErr)
	}

	m.logger.Info("initializing engine")
	engine, err := m.factory(ctx)
	if err != nil {
		m.initErr = err
		m.logger.Error("engine construction failed", "error", err)
		return nil, NewError(KindEngineInit, "ensure_initialized", err)
	}

	if _, err := engine.Detector.Detect(ctx, detectors.DetectorInput{
		Text:     WarmUpText,
		Language: m.language,
	}); err != nil {
		closeEngine(engine, m.logger)
		m.initErr = fmt.Errorf("warm-up detection failed: %w", err)
		m.logger.Error("engine warm-up failed", "error", err)
		return nil, NewError(KindEngineInit, "ensure_initialized", m.initErr)
	}

	m.engine = engine
	m.ready.Store(true)
	m.logger.Info("engine ready", "detector", engine.Detector.GetName(), "anonymizer", engine.Anonymizer.Name())
	return m.engine, nil
}

// GetInstance is an alias of EnsureInitialized.
func (m *EngineManager) GetInstance(ctx context.Context) (*SharedEngine, error) {
	return m.EnsureInitialized(ctx)
}

// Engine returns the initialized engine without constructing it.
func (m *EngineManager) Engine() (*SharedEngine, error) {
	if m.ready.Load() {
		return m.engine, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, NewError(KindEngineNotReady, "engine", errors.New("engine closed"))
	}
	if m.initErr != nil {
		return nil, NewError(KindEngineNotReady, "engine", m.initErr)
	}
	return nil, NewError(KindEngineNotReady, "engine", errors.New("engine not initialized"))
}

// Ready reports whether the engine finished its warm-up.
func (m *EngineManager) Ready() bool {
	return m.ready.Load()
}

// SupportedEntities returns the sorted entity types the detector knows.
func (m *EngineManager) SupportedEntities(ctx context.Context) ([]string, error) {
	engine, err := m.Engine()
	if err != nil {
		return nil, err
	}
	entities, err := engine.Detector.SupportedEntities(ctx, m.language)
	if err != nil {
		return nil, NewError(KindDetection, "supported_entities", err)
	}
	seen := make(map[string]bool, len(entities))
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Info returns the engine state for the health endpoint.
func (m *EngineManager) Info() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := map[string]interface{}{
		"ready":    m.ready.Load(),
		"language": m.language,
		"error":    nil,
	}
	if m.engine != nil {
		info["detector"] = m.engine.Detector.GetName()
		info["anonymizer"] = m.engine.Anonymizer.Name()
	}
	if m.initErr != nil {
		info["error"] = m.initErr.Error()
	}
	return info
}

// Close releases the engine. The manager cannot be reused afterwards.
func (m *EngineManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.ready.Store(false)
	if m.engine == nil {
		return nil
	}
	m.logger.Info("closing engine")
	return closeEngine(m.engine, m.logger)
}

func closeEngine(engine *SharedEngine, logger *slog.Logger) error {
	var errs []error
	if engine.Detector != nil {
		if err := engine.Detector.Close(); err != nil {
			logger.Warn("failed to close detector", "error", err)
			errs = append(errs, err)
		}
	}
	if c, ok := engine.Anonymizer.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close anonymizer", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
