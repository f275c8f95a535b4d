package redact

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
)

// CSVOptions controls which cells are scanned.
type CSVOptions struct {
	Threshold  float64
	Entities   []string
	SampleSize int // rows to scan; 0 scans every row
	Seed       int64
}

// CellFinding holds the findings of one non-empty cell.
type CellFinding struct {
	Row         int           `json:"row_index"`
	Column      string        `json:"column"`
	ColumnIndex int           `json:"-"`
	Value       string        `json:"value"`
	Findings    []pii.Finding `json:"pii_findings"`
}

// Target returns the cell address of the finding.
func (c CellFinding) Target() pii.CellTarget {
	return pii.CellTarget{Row: c.Row, Column: c.Column}
}

// ColumnSummary aggregates the findings of one column. PIICount counts
// cells, PIITypes counts findings per entity type.
type ColumnSummary struct {
	HasPII      bool           `json:"has_pii"`
	PIICount    int            `json:"pii_count"`
	PIITypes    map[string]int `json:"pii_types"`
	AllFindings []CellFinding  `json:"all_findings"`
}

// CSVAnalysis is the result of scanning a table.
type CSVAnalysis struct {
	TotalColumns  int                       `json:"total_columns"`
	TotalRows     int                       `json:"total_rows"`
	AnalyzedRows  int                       `json:"analyzed_rows"`
	IsSampled     bool                      `json:"is_sampled"`
	SampledRows   []int                     `json:"-"`
	ColumnResults map[string]*ColumnSummary `json:"column_results"`
	Cells         []CellFinding             `json:"-"`
}

// ColumnsWithPII counts the columns holding at least one flagged cell.
func (a *CSVAnalysis) ColumnsWithPII() int {
	n := 0
	for _, c := range a.ColumnResults {
		if c.HasPII {
			n++
		}
	}
	return n
}

// TotalPIIInstances sums the flagged cells of every column.
func (a *CSVAnalysis) TotalPIIInstances() int {
	n := 0
	for _, c := range a.ColumnResults {
		n += c.PIICount
	}
	return n
}

// CSVRedactor scans and rewrites tables cell by cell.
type CSVRedactor struct {
	spans  SpanDetector
	logger *slog.Logger
}

func NewCSVRedactor(spans SpanDetector, logger *slog.Logger) *CSVRedactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVRedactor{spans: spans, logger: logger.With("component", "csv_redactor")}
}

// Analyze runs detection over every column of the sampled rows. Empty cells
// are not scanned.
func (r *CSVRedactor) Analyze(ctx context.Context, table *extract.Table, opts CSVOptions) (*CSVAnalysis, error) {
	rows := SampleRows(table.NumRows(), opts.SampleSize, opts.Seed)
	analysis := &CSVAnalysis{
		TotalColumns:  table.NumColumns(),
		TotalRows:     table.NumRows(),
		AnalyzedRows:  len(rows),
		IsSampled:     len(rows) < table.NumRows(),
		SampledRows:   rows,
		ColumnResults: make(map[string]*ColumnSummary, table.NumColumns()),
	}

	for col, name := range table.Header {
		summary := &ColumnSummary{PIITypes: map[string]int{}, AllFindings: []CellFinding{}}
		for _, row := range rows {
			value := table.Rows[row][col]
			if strings.TrimSpace(value) == "" {
				continue
			}
			findings, err := r.spans.Detect(ctx, value, opts.Threshold, opts.Entities)
			if err != nil {
				return nil, err
			}
			if len(findings) == 0 {
				continue
			}
			cell := CellFinding{Row: row, Column: name, ColumnIndex: col, Value: value, Findings: findings}
			summary.AllFindings = append(summary.AllFindings, cell)
			for _, f := range findings {
				summary.PIITypes[f.EntityType]++
			}
			analysis.Cells = append(analysis.Cells, cell)
		}
		summary.PIICount = len(summary.AllFindings)
		summary.HasPII = summary.PIICount > 0
		// duplicate header names share one summary entry
		if prev, ok := analysis.ColumnResults[name]; ok {
			mergeSummary(prev, summary)
			continue
		}
		analysis.ColumnResults[name] = summary
	}

	r.logger.Info("csv analyzed",
		"rows", analysis.TotalRows, "columns", analysis.TotalColumns,
		"analyzed_rows", analysis.AnalyzedRows, "flagged_cells", len(analysis.Cells))
	return analysis, nil
}

func mergeSummary(dst, src *ColumnSummary) {
	dst.AllFindings = append(dst.AllFindings, src.AllFindings...)
	for k, v := range src.PIITypes {
		dst.PIITypes[k] += v
	}
	dst.PIICount += src.PIICount
	dst.HasPII = dst.PIICount > 0
}

// Redact replaces every flagged cell with its anonymized value and writes
// the table to outputPath. Cells without findings, and rows never scanned,
// keep their values.
func (r *CSVRedactor) Redact(ctx context.Context, table *extract.Table, cells []CellFinding, outputPath string) (*extract.Table, []pii.CellTarget, error) {
	if outputPath == "" {
		return nil, nil, pii.NewError(pii.KindRedaction, "redact_csv", errNoOutputPath)
	}

	out := table.Clone()
	targets := make([]pii.CellTarget, 0, len(cells))
	for _, cell := range cells {
		if len(cell.Findings) == 0 || cell.Row < 0 || cell.Row >= out.NumRows() ||
			cell.ColumnIndex < 0 || cell.ColumnIndex >= out.NumColumns() {
			continue
		}
		value := out.Rows[cell.Row][cell.ColumnIndex]
		if value == "" {
			continue
		}
		anonymized, err := r.spans.Anonymize(ctx, value, cell.Findings)
		if err != nil {
			return nil, nil, err
		}
		out.Rows[cell.Row][cell.ColumnIndex] = anonymized
		targets = append(targets, cell.Target())
	}

	if err := writeFileAtomic(outputPath, func(w io.Writer) error {
		return extract.WriteCSV(w, out)
	}); err != nil {
		return nil, nil, err
	}

	r.logger.Info("csv redacted", "cells", len(targets), "output", outputPath)
	return out, targets, nil
}
