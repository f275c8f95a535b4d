package processor

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
	"github.com/hannes/yaak-redact/src/backend/redact"
)

// AnalyzeRequest describes one document to analyze.
type AnalyzeRequest struct {
	Path       string
	Modality   extract.Modality // detected from the extension when empty
	Threshold  float64
	Entities   []string // empty means all entity types
	SampleSize int      // CSV only; 0 scans every row
	Anonymize  bool     // also compute anonymized text for PDF and image input
}

// EntityFilter marshals as the list of requested types, or "all".
type EntityFilter []string

func (f EntityFilter) MarshalJSON() ([]byte, error) {
	if len(f) == 0 {
		return json.Marshal("all")
	}
	return json.Marshal([]string(f))
}

// CSVSummary totals a CSV analysis.
type CSVSummary struct {
	ColumnsWithPII    int `json:"columns_with_pii"`
	TotalPIIInstances int `json:"total_pii_instances"`
}

// AnalysisResult is the outcome of analyzing one document. It is built per
// request and never cached.
type AnalysisResult struct {
	ID             string           `json:"id"`
	FilePath       string           `json:"file_path"`
	FileType       extract.Modality `json:"file_type"`
	Threshold      float64          `json:"threshold"`
	EntitiesFilter EntityFilter     `json:"entities_filter"`
	PIIFound       bool             `json:"pii_found"`
	PIICount       int              `json:"pii_count"`
	Findings       []pii.Finding    `json:"pii_findings,omitempty"`

	// PDF and text
	OriginalText string `json:"original_text,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`

	// CSV
	Analysis *redact.CSVAnalysis `json:"analysis,omitempty"`
	Summary  *CSVSummary         `json:"summary,omitempty"`

	// image
	ImageInfo     *extract.ImageInfo `json:"image_info,omitempty"`
	ExtractedText string             `json:"extracted_text,omitempty"`
	OCRWords      []pii.OCRWord      `json:"ocr_words,omitempty"`

	AnonymizedText string       `json:"anonymized_text,omitempty"`
	MaskedFile     string       `json:"masked_file,omitempty"`
	Targets        []pii.Target `json:"-"`

	table *extract.Table
}

// EntityCounts counts findings per entity type.
func (r *AnalysisResult) EntityCounts() map[string]int {
	counts := map[string]int{}
	if r.Analysis != nil {
		for _, c := range r.Analysis.ColumnResults {
			for k, v := range c.PIITypes {
				counts[k] += v
			}
		}
		return counts
	}
	for _, f := range r.Findings {
		counts[f.EntityType]++
	}
	return counts
}

// EntityTypes lists the detected entity types in sorted order.
func (r *AnalysisResult) EntityTypes() []string {
	counts := r.EntityCounts()
	types := make([]string, 0, len(counts))
	for k := range counts {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// AbbreviateLimit is the length in characters above which report fields are
// summarized.
const AbbreviateLimit = 500

// Abbreviate replaces text longer than AbbreviateLimit characters with
// "<N characters>".
func Abbreviate(text string) string {
	if n := utf8.RuneCountInString(text); n > AbbreviateLimit {
		return fmt.Sprintf("<%d characters>", n)
	}
	return text
}

// Abbreviated returns a shallow copy with long text fields abbreviated.
func (r *AnalysisResult) Abbreviated() *AnalysisResult {
	out := *r
	out.OriginalText = Abbreviate(r.OriginalText)
	out.ExtractedText = Abbreviate(r.ExtractedText)
	out.AnonymizedText = Abbreviate(r.AnonymizedText)
	return &out
}
