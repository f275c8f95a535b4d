//go:build !ocr

package extract

import (
	"context"
	"errors"
)

// ErrOCRNotEnabled is returned when OCR is used but support was not
// compiled in. Rebuild with -tags ocr (requires Tesseract).
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// TesseractOCR is a stub that fails every call.
type TesseractOCR struct{}

// NewTesseractOCR returns ErrOCRNotEnabled.
func NewTesseractOCR(language string) (*TesseractOCR, error) {
	return nil, ErrOCRNotEnabled
}

func (t *TesseractOCR) Recognize(ctx context.Context, image []byte) (OCRPage, error) {
	return OCRPage{}, ErrOCRNotEnabled
}

// Close is a no-op; it is safe to call on a nil client.
func (t *TesseractOCR) Close() error {
	return nil
}
