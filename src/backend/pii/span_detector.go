package pii

import (
	"context"
	"log/slog"
	"strings"

	detectors "github.com/hannes/yaak-redact/src/backend/pii/detectors"
)

// SpanDetector runs the shared engine over a single piece of text and
// enforces the finding invariants at the boundary.
type SpanDetector struct {
	manager      *EngineManager
	logger       *slog.Logger
	logPIIValues bool
}

func NewSpanDetector(manager *EngineManager, logger *slog.Logger, logPIIValues bool) *SpanDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpanDetector{
		manager:      manager,
		logger:       logger.With("component", "span_detector"),
		logPIIValues: logPIIValues,
	}
}

// NormalizeEntities trims and upper-cases an entity filter, dropping empty
// entries. A nil result means "all entities".
func NormalizeEntities(entities []string) []string {
	var out []string
	for _, e := range entities {
		e = strings.ToUpper(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Detect returns the findings in text scoring at least threshold and whose
// type is in entities (all types when empty). Engine readiness is checked
// before anything else, so an engine that failed warm-up never produces a
// silent empty result.
func (d *SpanDetector) Detect(ctx context.Context, text string, threshold float64, entities []string) ([]Finding, error) {
	engine, err := d.manager.Engine()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []Finding{}, nil
	}

	filter := NormalizeEntities(entities)
	allowed := make(map[string]bool, len(filter))
	for _, e := range filter {
		allowed[e] = true
	}

	output, err := engine.Detector.Detect(ctx, detectors.DetectorInput{
		Text:           text,
		Language:       d.manager.Language(),
		Entities:       filter,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, NewError(KindDetection, "detect", err)
	}

	findings := make([]Finding, 0, len(output.Entities))
	for _, e := range output.Entities {
		if e.Confidence < threshold {
			continue
		}
		if len(allowed) > 0 && !allowed[e.Label] {
			continue
		}
		f := Finding{
			EntityType: e.Label,
			Start:      e.StartPos,
			End:        e.EndPos,
			Score:      e.Confidence,
		}
		if !f.Valid(len(text)) {
			d.logger.Warn("dropping invalid span from engine",
				"entity_type", e.Label, "start", e.StartPos, "end", e.EndPos, "score", e.Confidence)
			continue
		}
		f.Text = text[f.Start:f.End]
		findings = append(findings, f)
	}

	if d.logPIIValues {
		for _, f := range findings {
			d.logger.Debug("finding", "entity_type", f.EntityType, "text", f.Text, "score", f.Score)
		}
	}
	d.logger.Debug("detection complete", "findings", len(findings), "text_len", len(text))
	return findings, nil
}

// Anonymize rewrites the finding spans of text with the shared anonymizer.
func (d *SpanDetector) Anonymize(ctx context.Context, text string, findings []Finding) (string, error) {
	engine, err := d.manager.Engine()
	if err != nil {
		return "", err
	}
	if len(findings) == 0 {
		return text, nil
	}
	out, err := engine.Anonymizer.Anonymize(ctx, text, findings)
	if err != nil {
		return "", NewError(KindAnonymization, "anonymize", err)
	}
	return out, nil
}
