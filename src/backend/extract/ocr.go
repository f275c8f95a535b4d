package extract

import (
	"context"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// OCRPage is the result of recognizing one image.
type OCRPage struct {
	Text  string        `json:"text"`
	Words []pii.OCRWord `json:"words"`
}

// OCREngine recognizes words and their boxes in encoded image bytes.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (OCRPage, error)
	Close() error
}
