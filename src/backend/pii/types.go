package pii

import "fmt"

// Finding is a detected PII span in a piece of text.
// Start and End are byte offsets into the analyzed string.
type Finding struct {
	EntityType string  `json:"entity_type"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Valid reports whether the finding's offsets fit a text of length n.
func (f Finding) Valid(n int) bool {
	return f.Start >= 0 && f.Start < f.End && f.End <= n && f.Score >= 0 && f.Score <= 1
}

// BoundingBox is a pixel rectangle in source image coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.Width, b.Height)
}

// OCRWord is one token recognized by the OCR engine.
type OCRWord struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence,omitempty"`
}

// Target is the unit a redaction rewrites: a CSV cell, a PDF paragraph or
// an image region.
type Target interface {
	TargetKind() string
}

// CellTarget addresses one CSV cell by data-row index and column name.
type CellTarget struct {
	Row    int    `json:"row_index"`
	Column string `json:"column"`
}

// ParagraphTarget addresses one re-flowed PDF paragraph.
type ParagraphTarget struct {
	Index int `json:"paragraph_index"`
}

// RegionTarget addresses a masked image region (padding included).
type RegionTarget struct {
	Box BoundingBox `json:"box"`
}

func (CellTarget) TargetKind() string      { return "cell" }
func (ParagraphTarget) TargetKind() string { return "paragraph" }
func (RegionTarget) TargetKind() string    { return "region" }

// CommonEntities lists the entity types most callers ask for.
var CommonEntities = []string{
	"PERSON", "EMAIL_ADDRESS", "PHONE_NUMBER", "CREDIT_CARD",
	"US_SSN", "LOCATION", "DATE_TIME", "IP_ADDRESS", "URL",
}
