//go:build ocr

package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// TesseractOCR wraps a single Tesseract client. Tesseract is not safe for
// concurrent use, so Recognize calls are serialized.
type TesseractOCR struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractOCR creates a client for the given language(s), e.g. "eng"
// or "eng+deu". The client should be closed when no longer needed.
func NewTesseractOCR(language string) (*TesseractOCR, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(strings.Split(language, "+")...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	return &TesseractOCR{client: client}, nil
}

// Recognize returns the page text and every non-empty word with its box,
// in Tesseract's reading order.
func (t *TesseractOCR) Recognize(ctx context.Context, image []byte) (OCRPage, error) {
	if err := ctx.Err(); err != nil {
		return OCRPage{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(image); err != nil {
		return OCRPage{}, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return OCRPage{}, fmt.Errorf("OCR failed: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return OCRPage{}, fmt.Errorf("word boxes: %w", err)
	}

	words := make([]pii.OCRWord, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, pii.OCRWord{
			Text: b.Word,
			Box: pii.BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
			Confidence: b.Confidence / 100.0,
		})
	}

	return OCRPage{Text: strings.TrimSpace(text), Words: words}, nil
}

// Close releases OCR resources.
func (t *TesseractOCR) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
