package redact

import (
	"context"
	"strings"
	"sync"

	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
)

// mockSpans flags every value containing "@" as one EMAIL_ADDRESS span and
// records which values it was asked about.
type mockSpans struct {
	mu      sync.Mutex
	scanned []string
	err     error
}

func (m *mockSpans) Detect(ctx context.Context, text string, threshold float64, entities []string) ([]pii.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanned = append(m.scanned, text)
	if m.err != nil {
		return nil, m.err
	}
	at := strings.Index(text, "@")
	if at < 0 {
		return []pii.Finding{}, nil
	}
	start := strings.LastIndex(text[:at], " ") + 1
	return []pii.Finding{{EntityType: "EMAIL_ADDRESS", Text: text[start:], Start: start, End: len(text), Score: 1}}, nil
}

func (m *mockSpans) Anonymize(ctx context.Context, text string, findings []pii.Finding) (string, error) {
	return pii.ReplaceAnonymizer{}.Anonymize(ctx, text, findings)
}

// mockOCR returns a fixed page.
type mockOCR struct {
	page  extract.OCRPage
	calls int
}

func (m *mockOCR) Recognize(ctx context.Context, image []byte) (extract.OCRPage, error) {
	m.calls++
	return m.page, nil
}

func (m *mockOCR) Close() error { return nil }
