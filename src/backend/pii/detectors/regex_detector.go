package pii

import (
	"context"
	"sort"
	"strings"
)

// RegexDetector implements Detector using regular expressions
type RegexDetector struct {
	patterns []Pattern
}

func NewRegexDetector(patterns []Pattern) *RegexDetector {
	return &RegexDetector{
		patterns: patterns,
	}
}

// GetName returns the name of this detector
func (r *RegexDetector) GetName() string {
	return DetectorNameRegex
}

// Detect processes the input and returns detected entities ordered by
// start offset.
func (r *RegexDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	if err := ctx.Err(); err != nil {
		return DetectorOutput{}, err
	}

	var entities []Entity

	// loop through all patterns and find matches
	for _, p := range r.patterns {
		if p.Score < input.ScoreThreshold || !input.wantsLabel(p.Entity) {
			continue
		}
		for _, match := range p.Regex.FindAllStringIndex(input.Text, -1) {
			startPos, endPos := match[0], match[1]
			if p.Entity == "URL" {
				endPos = startPos + len(strings.TrimRight(input.Text[startPos:endPos], ".,;:!?)"))
			}
			matchedText := input.Text[startPos:endPos]
			if p.Validate != nil && !p.Validate(matchedText) {
				continue
			}
			entities = append(entities, Entity{
				Text:       matchedText,
				Label:      p.Entity,
				StartPos:   startPos,
				EndPos:     endPos,
				Confidence: p.Score,
			})
		}
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].StartPos != entities[j].StartPos {
			return entities[i].StartPos < entities[j].StartPos
		}
		return entities[i].EndPos > entities[j].EndPos
	})

	return DetectorOutput{
		Text:     input.Text,
		Entities: entities,
	}, nil
}

// SupportedEntities lists the entity types of the configured patterns.
// The regex recognizers are language independent.
func (r *RegexDetector) SupportedEntities(ctx context.Context, language string) ([]string, error) {
	seen := make(map[string]bool, len(r.patterns))
	var out []string
	for _, p := range r.patterns {
		if !seen[p.Entity] {
			seen[p.Entity] = true
			out = append(out, p.Entity)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close implements the Detector interface
func (r *RegexDetector) Close() error {
	// Regex detector doesn't need cleanup
	return nil
}
