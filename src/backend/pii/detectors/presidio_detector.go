package pii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PresidioDetector calls a Presidio analyzer service over HTTP.
// It is safe for concurrent use.
type PresidioDetector struct {
	baseURL string
	http    *http.Client
}

// NewPresidioDetector creates a detector pointing at the analyzer base URL
// (e.g. "http://presidio-analyzer:3000").
func NewPresidioDetector(baseURL string) *PresidioDetector {
	return &PresidioDetector{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Entities       []string `json:"entities,omitempty"`
	ScoreThreshold float64  `json:"score_threshold"`
}

type analyzerResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

func (p *PresidioDetector) GetName() string {
	return DetectorNamePresidio
}

// Detect posts the text to /analyze. Offsets returned by the analyzer are
// code point offsets; they are converted to byte offsets here.
func (p *PresidioDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	language := input.Language
	if language == "" {
		language = "en"
	}
	body, err := json.Marshal(analyzeRequest{
		Text:           input.Text,
		Language:       language,
		Entities:       input.Entities,
		ScoreThreshold: input.ScoreThreshold,
	})
	if err != nil {
		return DetectorOutput{}, fmt.Errorf("presidio: marshal: %w", err)
	}

	var results []analyzerResult
	if err := p.do(ctx, http.MethodPost, "/analyze", body, &results); err != nil {
		return DetectorOutput{}, err
	}

	index := runeByteIndex(input.Text)
	entities := make([]Entity, 0, len(results))
	for _, r := range results {
		if r.Start < 0 || r.End > len(index)-1 || r.Start >= r.End {
			return DetectorOutput{}, fmt.Errorf("presidio: span [%d:%d] outside text", r.Start, r.End)
		}
		start, end := index[r.Start], index[r.End]
		entities = append(entities, Entity{
			Text:       input.Text[start:end],
			Label:      r.EntityType,
			StartPos:   start,
			EndPos:     end,
			Confidence: r.Score,
		})
	}

	return DetectorOutput{Text: input.Text, Entities: entities}, nil
}

// SupportedEntities asks the analyzer which entity types it recognizes.
func (p *PresidioDetector) SupportedEntities(ctx context.Context, language string) ([]string, error) {
	if language == "" {
		language = "en"
	}
	var entities []string
	path := "/supportedentities?language=" + url.QueryEscape(language)
	if err := p.do(ctx, http.MethodGet, path, nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (p *PresidioDetector) Close() error {
	p.http.CloseIdleConnections()
	return nil
}

func (p *PresidioDetector) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("presidio: request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("presidio: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("presidio: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("presidio: decode: %w", err)
	}
	return nil
}

// runeByteIndex maps code point index i to its byte offset; the final
// element is len(s).
func runeByteIndex(s string) []int {
	index := make([]int, 0, len(s)+1)
	for i := range s {
		index = append(index, i)
	}
	return append(index, len(s))
}
