// Package redact re-anchors detected spans to the unit each medium can
// rewrite (a CSV cell, a re-flowed PDF paragraph, an image region) and
// writes the redacted artifact.
package redact

import (
	"strings"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// PositionResolver maps the text of a finding onto OCR word boxes.
type PositionResolver interface {
	Resolve(target string, words []pii.OCRWord) []pii.BoundingBox
}

// ContainmentResolver matches every OCR word whose normalized text contains,
// or is contained in, the normalized target. The target is lowercased with
// all whitespace removed; words are lowercased and trimmed.
//
// Short targets and short words over-match (a word "do" matches the target
// "john doe"). Candidates are not scored or disambiguated.
type ContainmentResolver struct{}

func (ContainmentResolver) Resolve(target string, words []pii.OCRWord) []pii.BoundingBox {
	normalizedTarget := strings.ToLower(strings.Join(strings.Fields(target), ""))
	if normalizedTarget == "" {
		return nil
	}

	var boxes []pii.BoundingBox
	for _, w := range words {
		word := strings.ToLower(strings.TrimSpace(w.Text))
		if word == "" {
			continue
		}
		if strings.Contains(normalizedTarget, word) || strings.Contains(word, normalizedTarget) {
			boxes = append(boxes, w.Box)
		}
	}
	return boxes
}
