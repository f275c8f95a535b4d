package pii

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	AnonymizerReplace  = "replace"
	AnonymizerFake     = "fake"
	AnonymizerPresidio = "presidio"
)

// Anonymizer rewrites the spans of text named by findings.
type Anonymizer interface {
	Name() string
	Anonymize(ctx context.Context, text string, findings []Finding) (string, error)
}

// AnonymizerConfig carries the settings NewAnonymizer may need.
type AnonymizerConfig struct {
	PresidioURL string
	FakeSeed    int64
}

// NewAnonymizer builds an anonymizer by name.
func NewAnonymizer(name string, config AnonymizerConfig) (Anonymizer, error) {
	switch name {
	case "", AnonymizerReplace:
		return ReplaceAnonymizer{}, nil
	case AnonymizerFake:
		return NewFakeAnonymizer(NewGeneratorServiceWithSeed(config.FakeSeed)), nil
	case AnonymizerPresidio:
		if config.PresidioURL == "" {
			return nil, fmt.Errorf("presidio anonymizer URL is required for %s", AnonymizerPresidio)
		}
		return NewPresidioAnonymizer(config.PresidioURL), nil
	default:
		return nil, fmt.Errorf("unknown anonymizer: %s", name)
	}
}

// ReplaceAnonymizer substitutes each span with "<ENTITY_TYPE>".
type ReplaceAnonymizer struct{}

func (ReplaceAnonymizer) Name() string { return AnonymizerReplace }

func (ReplaceAnonymizer) Anonymize(ctx context.Context, text string, findings []Finding) (string, error) {
	spans, err := resolveConflicts(text, findings)
	if err != nil {
		return "", err
	}
	return applySpans(text, spans, func(f Finding) string {
		return "<" + f.EntityType + ">"
	}), nil
}

// FakeAnonymizer substitutes realistic values from the generators package.
// The same original value of the same type gets the same replacement
// within one call.
type FakeAnonymizer struct {
	mu        sync.Mutex
	generator *GeneratorService
}

func NewFakeAnonymizer(generator *GeneratorService) *FakeAnonymizer {
	return &FakeAnonymizer{generator: generator}
}

func (a *FakeAnonymizer) Name() string { return AnonymizerFake }

func (a *FakeAnonymizer) Anonymize(ctx context.Context, text string, findings []Finding) (string, error) {
	spans, err := resolveConflicts(text, findings)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// spans are ordered by start, so generation order is stable for a seed
	seen := make(map[string]string)
	replacements := make([]string, len(spans))
	for i, f := range spans {
		original := text[f.Start:f.End]
		key := f.EntityType + "\x00" + original
		r, ok := seen[key]
		if !ok {
			r = a.generator.GenerateReplacement(f.EntityType, original)
			seen[key] = r
		}
		replacements[i] = r
	}

	i := len(spans)
	return applySpans(text, spans, func(Finding) string {
		i--
		return replacements[i]
	}), nil
}

// resolveConflicts validates the findings and removes overlaps:
// overlapping spans of the same type merge, a span contained in another
// is dropped, and a partial overlap of different types trims the later
// span's start. The result is sorted by start.
func resolveConflicts(text string, findings []Finding) ([]Finding, error) {
	spans := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Start < 0 || f.End > len(text) || f.Start >= f.End {
			return nil, fmt.Errorf("finding %s [%d:%d] outside text of length %d", f.EntityType, f.Start, f.End, len(text))
		}
		spans = append(spans, f)
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	merged := make([]Finding, 0, len(spans))
	for _, f := range spans {
		n := len(merged)
		if n == 0 || f.Start >= merged[n-1].End {
			merged = append(merged, f)
			continue
		}
		last := &merged[n-1]
		switch {
		case f.EntityType == last.EntityType:
			if f.End > last.End {
				last.End = f.End
			}
			if f.Score > last.Score {
				last.Score = f.Score
			}
		case f.End <= last.End:
			// contained in the previous span
		default:
			f.Start = last.End
			merged = append(merged, f)
		}
	}
	for i := range merged {
		merged[i].Text = text[merged[i].Start:merged[i].End]
	}
	return merged, nil
}

// applySpans replaces spans right to left so earlier offsets stay valid.
// replace is called in that right-to-left order.
func applySpans(text string, spans []Finding, replace func(Finding) string) string {
	var b strings.Builder
	b.Grow(len(text))
	out := text
	for i := len(spans) - 1; i >= 0; i-- {
		f := spans[i]
		b.Reset()
		b.WriteString(out[:f.Start])
		b.WriteString(replace(f))
		b.WriteString(out[f.End:])
		out = b.String()
	}
	return out
}
