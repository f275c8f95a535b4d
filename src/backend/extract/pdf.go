package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

// PDFText is the extracted text of a PDF.
type PDFText struct {
	Text      string
	PageCount int
}

// PDFExtractor extracts plain text per page.
type PDFExtractor struct{}

// Extract returns the text of every non-empty page joined by PageSeparator.
func (PDFExtractor) Extract(ctx context.Context, path string) (result PDFText, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = pii.NewPathError(pii.KindFileRead, "extract_pdf", path, fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return PDFText{}, pii.NewPathError(pii.KindFileRead, "extract_pdf", path, err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return PDFText{}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return PDFText{}, pii.NewPathError(pii.KindFileRead, "extract_pdf", path, fmt.Errorf("page %d: %w", i, err))
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	return PDFText{
		Text:      strings.Join(pages, PageSeparator),
		PageCount: n,
	}, nil
}
