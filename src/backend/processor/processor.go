// Package processor runs the per-document workflow: extract, detect,
// resolve positions, redact and journal.
package processor

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
	"github.com/hannes/yaak-redact/src/backend/redact"
	"github.com/hannes/yaak-redact/src/backend/store"
)

// ErrInvalidRequest marks requests rejected before any work is done.
var ErrInvalidRequest = errors.New("invalid request")

// PDFTextExtractor returns the text of a PDF.
type PDFTextExtractor interface {
	Extract(ctx context.Context, path string) (extract.PDFText, error)
}

// Config wires a Processor.
type Config struct {
	Manager      *pii.EngineManager
	OCR          extract.OCREngine // nil disables image input
	PDF          PDFTextExtractor  // defaults to extract.PDFExtractor
	Resolver     redact.PositionResolver
	Jobs         store.JobStore // nil disables the journal
	MaskColor    color.Color
	MaskPadding  int
	SampleSeed   int64
	LogPIIValues bool
	Logger       *slog.Logger
}

// Processor analyzes and redacts documents. It is safe for concurrent use;
// all per-document state lives in the AnalysisResult.
type Processor struct {
	manager *pii.EngineManager
	spans   *pii.SpanDetector
	pdf     PDFTextExtractor
	ocr     extract.OCREngine
	jobs    store.JobStore
	seed    int64
	logger  *slog.Logger

	csvRedactor   *redact.CSVRedactor
	pdfRedactor   *redact.PDFRedactor
	imageRedactor *redact.ImageRedactor
}

func New(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PDF == nil {
		cfg.PDF = extract.PDFExtractor{}
	}

	spans := pii.NewSpanDetector(cfg.Manager, logger, cfg.LogPIIValues)
	return &Processor{
		manager:       cfg.Manager,
		spans:         spans,
		pdf:           cfg.PDF,
		ocr:           cfg.OCR,
		jobs:          cfg.Jobs,
		seed:          cfg.SampleSeed,
		logger:        logger.With("component", "processor"),
		csvRedactor:   redact.NewCSVRedactor(spans, logger),
		pdfRedactor:   redact.NewPDFRedactor(logger),
		imageRedactor: redact.NewImageRedactor(cfg.Resolver, cfg.OCR, cfg.MaskColor, cfg.MaskPadding, logger),
	}
}

// SupportedEntities initializes the engine if needed and lists its entity
// types.
func (p *Processor) SupportedEntities(ctx context.Context) ([]string, error) {
	if _, err := p.manager.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	return p.manager.SupportedEntities(ctx)
}

func validateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: threshold %v is outside [0, 1]", ErrInvalidRequest, threshold)
	}
	return nil
}

// AnalyzeText detects PII in a plain string.
func (p *Processor) AnalyzeText(ctx context.Context, text string, threshold float64, entities []string) (*AnalysisResult, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if _, err := p.manager.EnsureInitialized(ctx); err != nil {
		return nil, err
	}

	filter := pii.NormalizeEntities(entities)
	findings, err := p.spans.Detect(ctx, text, threshold, filter)
	if err != nil {
		return nil, err
	}
	result := &AnalysisResult{
		ID:             uuid.NewString(),
		FileType:       extract.ModalityText,
		Threshold:      threshold,
		EntitiesFilter: filter,
	}
	setFindings(result, findings)
	return result, nil
}

// Analyze extracts the document's text and detects PII in it.
func (p *Processor) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	if err := validateThreshold(req.Threshold); err != nil {
		return nil, err
	}
	modality := req.Modality
	if modality == "" {
		m, err := extract.DetectModality(req.Path)
		if err != nil {
			return nil, err
		}
		modality = m
	}
	if _, err := p.manager.EnsureInitialized(ctx); err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		ID:             uuid.NewString(),
		FilePath:       req.Path,
		FileType:       modality,
		Threshold:      req.Threshold,
		EntitiesFilter: pii.NormalizeEntities(req.Entities),
	}

	var err error
	switch modality {
	case extract.ModalityCSV:
		err = p.analyzeCSV(ctx, req, result)
	case extract.ModalityPDF:
		err = p.analyzePDF(ctx, req, result)
	case extract.ModalityImage:
		err = p.analyzeImage(ctx, req, result)
	default:
		err = pii.NewPathError(pii.KindUnsupportedFormat, "analyze", req.Path,
			fmt.Errorf("modality %q cannot be analyzed from a file", modality))
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("document analyzed",
		"id", result.ID, "file_type", result.FileType, "pii_count", result.PIICount)
	return result, nil
}

func setFindings(result *AnalysisResult, findings []pii.Finding) {
	result.Findings = findings
	result.PIICount = len(findings)
	result.PIIFound = len(findings) > 0
}

func (p *Processor) analyzeCSV(ctx context.Context, req AnalyzeRequest, result *AnalysisResult) error {
	table, err := extract.ReadCSV(req.Path)
	if err != nil {
		return err
	}
	analysis, err := p.csvRedactor.Analyze(ctx, table, redact.CSVOptions{
		Threshold:  req.Threshold,
		Entities:   result.EntitiesFilter,
		SampleSize: req.SampleSize,
		Seed:       p.seed,
	})
	if err != nil {
		return err
	}

	result.table = table
	result.Analysis = analysis
	result.Summary = &CSVSummary{
		ColumnsWithPII:    analysis.ColumnsWithPII(),
		TotalPIIInstances: analysis.TotalPIIInstances(),
	}
	result.PIICount = result.Summary.TotalPIIInstances
	result.PIIFound = result.PIICount > 0
	return nil
}

func (p *Processor) analyzePDF(ctx context.Context, req AnalyzeRequest, result *AnalysisResult) error {
	doc, err := p.pdf.Extract(ctx, req.Path)
	if err != nil {
		return err
	}
	findings, err := p.spans.Detect(ctx, doc.Text, req.Threshold, result.EntitiesFilter)
	if err != nil {
		return err
	}

	result.OriginalText = doc.Text
	result.PageCount = doc.PageCount
	setFindings(result, findings)

	if req.Anonymize {
		result.AnonymizedText, err = p.spans.Anonymize(ctx, doc.Text, findings)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) analyzeImage(ctx context.Context, req AnalyzeRequest, result *AnalysisResult) error {
	img, err := extract.LoadImage(req.Path)
	if err != nil {
		return err
	}
	info := img.Info()
	result.ImageInfo = &info

	if p.ocr == nil {
		return pii.NewPathError(pii.KindFileRead, "ocr", req.Path, errors.New("no OCR engine configured"))
	}
	page, err := p.ocr.Recognize(ctx, img.Data)
	if err != nil {
		return pii.NewPathError(pii.KindFileRead, "ocr", req.Path, err)
	}
	text := strings.TrimSpace(page.Text)

	findings, err := p.spans.Detect(ctx, text, req.Threshold, result.EntitiesFilter)
	if err != nil {
		return err
	}

	result.ExtractedText = text
	result.OCRWords = page.Words
	if result.OCRWords == nil {
		result.OCRWords = []pii.OCRWord{}
	}
	setFindings(result, findings)

	if req.Anonymize {
		result.AnonymizedText, err = p.spans.Anonymize(ctx, text, findings)
		if err != nil {
			return err
		}
	}
	return nil
}

// Redact writes the redacted artifact of an analyzed document to
// outputPath and returns the path.
func (p *Processor) Redact(ctx context.Context, result *AnalysisResult, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = MaskedFileName(result.FilePath)
	}

	switch result.FileType {
	case extract.ModalityCSV:
		table := result.table
		if table == nil {
			t, err := extract.ReadCSV(result.FilePath)
			if err != nil {
				return "", err
			}
			table = t
		}
		var cells []redact.CellFinding
		if result.Analysis != nil {
			cells = result.Analysis.Cells
		}
		_, targets, err := p.csvRedactor.Redact(ctx, table, cells, outputPath)
		if err != nil {
			return "", err
		}
		for _, t := range targets {
			result.Targets = append(result.Targets, t)
		}

	case extract.ModalityPDF:
		anonymized := result.AnonymizedText
		if anonymized == "" {
			var err error
			anonymized, err = p.spans.Anonymize(ctx, result.OriginalText, result.Findings)
			if err != nil {
				return "", err
			}
			result.AnonymizedText = anonymized
		}
		targets, err := p.pdfRedactor.Redact(anonymized, outputPath)
		if err != nil {
			return "", err
		}
		for _, t := range targets {
			result.Targets = append(result.Targets, t)
		}

	case extract.ModalityImage:
		targets, err := p.imageRedactor.Redact(ctx, result.FilePath, result.Findings, result.OCRWords, outputPath)
		if err != nil {
			return "", err
		}
		for _, t := range targets {
			result.Targets = append(result.Targets, t)
		}

	default:
		return "", pii.NewPathError(pii.KindUnsupportedFormat, "redact", result.FilePath,
			fmt.Errorf("modality %q has no redacted artifact", result.FileType))
	}

	result.MaskedFile = outputPath
	p.logger.Info("document redacted",
		"id", result.ID, "file_type", result.FileType, "targets", len(result.Targets), "output", outputPath)
	return outputPath, nil
}

// Process analyzes the document, redacts it when req.Anonymize is set and
// records the outcome in the journal. An empty outputPath writes next to
// the input using MaskedFileName.
func (p *Processor) Process(ctx context.Context, req AnalyzeRequest, outputPath string) (*AnalysisResult, error) {
	job := store.Job{
		ID:        uuid.NewString(),
		FileName:  filepath.Base(req.Path),
		FileType:  string(req.Modality),
		Status:    store.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	p.recordJob(ctx, job)

	result, err := p.Analyze(ctx, req)
	if err == nil && req.Anonymize {
		_, err = p.Redact(ctx, result, outputPath)
	}

	completed := time.Now().UTC()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = store.StatusFailed
		job.Error = pii.KindOf(err).String()
		p.recordJob(ctx, job)
		return nil, err
	}

	result.ID = job.ID
	job.Status = store.StatusCompleted
	job.FileType = string(result.FileType)
	job.FindingCount = result.PIICount
	job.EntityCounts = result.EntityCounts()
	if result.MaskedFile != "" {
		job.MaskedFile = filepath.Base(result.MaskedFile)
	}
	p.recordJob(ctx, job)
	return result, nil
}

// Jobs returns the journal, or nil when it is disabled.
func (p *Processor) Jobs() store.JobStore {
	return p.jobs
}

func (p *Processor) recordJob(ctx context.Context, job store.Job) {
	if p.jobs == nil {
		return
	}
	// journal writes never fail a document
	if err := p.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		p.logger.Warn("failed to record job", "id", job.ID, "status", job.Status, "error", err)
	}
}

// MaskedFileName derives the artifact name for a document: "report.pdf"
// becomes "report_masked.pdf". webp input is written as PNG.
func MaskedFileName(path string) string {
	ext := filepath.Ext(path)
	outExt := ext
	if strings.EqualFold(ext, ".webp") {
		outExt = ".png"
	}
	return strings.TrimSuffix(path, ext) + "_masked" + outExt
}
