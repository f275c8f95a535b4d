package redact

import (
	"context"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// SpanDetector is the detection and anonymization surface the redactors
// need. *pii.SpanDetector implements it.
type SpanDetector interface {
	Detect(ctx context.Context, text string, threshold float64, entities []string) ([]pii.Finding, error)
	Anonymize(ctx context.Context, text string, findings []pii.Finding) (string, error)
}
