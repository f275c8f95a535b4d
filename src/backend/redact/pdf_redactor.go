package redact

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/net/html"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// Layout of the re-flowed document, in points.
const (
	pdfMargin           = 72.0
	pdfFontSize         = 11.0
	pdfLeading          = 14.0
	pdfParagraphSpacing = 6.0
	lineBreakTag        = "<br/>"
)

// BuildParagraphs splits text on blank-line breaks into paragraph markup.
// Within a paragraph runs of whitespace collapse to one space, blank lines
// are dropped and the remaining lines are joined with <br/>. Markup
// characters are escaped. Empty paragraphs are dropped.
func BuildParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var lines []string
		for _, line := range strings.Split(para, "\n") {
			if fields := strings.Fields(line); len(fields) > 0 {
				lines = append(lines, html.EscapeString(strings.Join(fields, " ")))
			}
		}
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, lineBreakTag))
		}
	}
	return paragraphs
}

// paragraphText turns paragraph markup back into plain text with newlines.
func paragraphText(markup string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				b.WriteByte('\n')
			}
		}
	}
}

// PDFRedactor writes anonymized text as a new, simply flowed PDF. The
// original layout is not preserved.
type PDFRedactor struct {
	logger *slog.Logger
}

func NewPDFRedactor(logger *slog.Logger) *PDFRedactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFRedactor{logger: logger.With("component", "pdf_redactor")}
}

// Redact renders anonymizedText to outputPath, one flowed block per
// paragraph, and returns one target per emitted paragraph.
func (r *PDFRedactor) Redact(anonymizedText, outputPath string) ([]pii.ParagraphTarget, error) {
	if outputPath == "" {
		return nil, pii.NewError(pii.KindRedaction, "redact_pdf", errNoOutputPath)
	}

	paragraphs := BuildParagraphs(anonymizedText)

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.SetFont("Helvetica", "", pdfFontSize)
	doc.AddPage()
	// core fonts are cp1252
	tr := doc.UnicodeTranslatorFromDescriptor("")

	targets := make([]pii.ParagraphTarget, 0, len(paragraphs))
	for i, p := range paragraphs {
		doc.MultiCell(0, pdfLeading, tr(paragraphText(p)), "", "L", false)
		doc.Ln(pdfParagraphSpacing)
		targets = append(targets, pii.ParagraphTarget{Index: i})
	}
	if doc.Err() {
		return nil, pii.NewPathError(pii.KindRedaction, "redact_pdf", outputPath, doc.Error())
	}

	if err := writeFileAtomic(outputPath, func(w io.Writer) error {
		if err := doc.Output(w); err != nil {
			return err
		}
		if doc.Err() {
			return errors.Join(errors.New("render pdf"), doc.Error())
		}
		return nil
	}); err != nil {
		return nil, err
	}

	r.logger.Info("pdf redacted", "paragraphs", len(targets), "output", outputPath)
	return targets, nil
}
