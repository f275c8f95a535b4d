package pii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// PresidioAnonymizer calls a Presidio anonymizer service's /anonymize
// endpoint with the default replace operator.
type PresidioAnonymizer struct {
	url  string
	http *http.Client
}

func NewPresidioAnonymizer(baseURL string) *PresidioAnonymizer {
	return &PresidioAnonymizer{
		url: strings.TrimRight(baseURL, "/") + "/anonymize",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type anonymizeRequest struct {
	Text            string                       `json:"text"`
	AnalyzerResults []analyzerResult             `json:"analyzer_results"`
	Anonymizers     map[string]map[string]string `json:"anonymizers,omitempty"`
}

type analyzerResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

type anonymizeResponse struct {
	Text string `json:"text"`
}

func (a *PresidioAnonymizer) Name() string { return AnonymizerPresidio }

// Anonymize sends byte-offset findings as code point offsets, which is what
// the service expects.
func (a *PresidioAnonymizer) Anonymize(ctx context.Context, text string, findings []Finding) (string, error) {
	results := make([]analyzerResult, 0, len(findings))
	for _, f := range findings {
		if f.Start < 0 || f.End > len(text) || f.Start >= f.End {
			return "", fmt.Errorf("finding %s [%d:%d] outside text of length %d", f.EntityType, f.Start, f.End, len(text))
		}
		start := utf8.RuneCountInString(text[:f.Start])
		results = append(results, analyzerResult{
			EntityType: f.EntityType,
			Start:      start,
			End:        start + utf8.RuneCountInString(text[f.Start:f.End]),
			Score:      f.Score,
		})
	}

	body, err := json.Marshal(anonymizeRequest{
		Text:            text,
		AnalyzerResults: results,
		Anonymizers:     map[string]map[string]string{"DEFAULT": {"type": "replace"}},
	})
	if err != nil {
		return "", fmt.Errorf("presidio: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("presidio: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("presidio: anonymize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("presidio: anonymize: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result anonymizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("presidio: decode: %w", err)
	}
	return result.Text, nil
}

func (a *PresidioAnonymizer) Close() error {
	a.http.CloseIdleConnections()
	return nil
}
