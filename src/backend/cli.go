package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hannes/yaak-redact/src/backend/config"
	"github.com/hannes/yaak-redact/src/backend/pii"
	"github.com/hannes/yaak-redact/src/backend/processor"
)

const (
	formatText = "text"
	formatJSON = "json"

	findingsPerType = 5
	rule            = "──────────────────────────────────────────────────────────────────────"
)

// entityList collects -entities values; repeated flags and comma-separated
// lists are both accepted.
type entityList []string

func (e *entityList) String() string {
	return strings.Join(*e, ",")
}

func (e *entityList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*e = append(*e, s)
		}
	}
	return nil
}

type cliOptions struct {
	configPath string
	serve      bool
	anonymize  bool
	output     string
	jsonPath   string
	sampleSize int
	threshold  float64
	entities   entityList
	noSummary  bool
	format     string
}

func registerFlags(fs *flag.FlagSet) *cliOptions {
	opts := &cliOptions{}
	fs.StringVar(&opts.configPath, "config", "", "Path to JSON config file")
	fs.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API even when a file is given")
	fs.BoolVar(&opts.anonymize, "anonymize", false, "Write a redacted copy of the file")
	fs.StringVar(&opts.output, "output", "", "Output path for the redacted file (default: <name>_masked.<ext>)")
	fs.StringVar(&opts.jsonPath, "json", "", "Save results to a JSON file")
	fs.IntVar(&opts.sampleSize, "sample-size", 0, "Number of CSV rows to sample (0 scans every row)")
	fs.Float64Var(&opts.threshold, "threshold", -1, "Minimum confidence score 0.0-1.0 (default from config, 0.35)")
	fs.Var(&opts.entities, "entities", "Entity types to detect, e.g. PERSON,EMAIL_ADDRESS (default all)")
	fs.BoolVar(&opts.noSummary, "no-summary", false, "Skip printing the results summary")
	fs.StringVar(&opts.format, "format", formatText, "Output format: text or json")
	return opts
}

// runCLI analyzes one file and reports to out. It returns the exit code.
func runCLI(ctx context.Context, a *app, cfg *config.Config, opts *cliOptions, path string, out io.Writer) int {
	if opts.format != formatText && opts.format != formatJSON {
		fmt.Fprintf(os.Stderr, "unknown format %q (use text or json)\n", opts.format)
		return 2
	}
	threshold := opts.threshold
	if threshold < 0 {
		threshold = cfg.Analysis.DefaultThreshold
	}
	textOut := opts.format == formatText

	if textOut {
		printHeader(out)
		fmt.Fprintf(out, "Analyzing %s ...\n\n", path)
	}

	result, err := a.proc.Process(ctx, processor.AnalyzeRequest{
		Path:       path,
		Threshold:  threshold,
		Entities:   opts.entities,
		SampleSize: opts.sampleSize,
		Anonymize:  opts.anonymize,
	}, opts.output)
	if err != nil {
		if textOut {
			fmt.Fprintf(out, "✗ Analysis failed: %v\n\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		}
		return 1
	}

	if result.MaskedFile != "" && textOut {
		fmt.Fprintf(out, "✓ Masked %s saved to: %s\n", result.FileType, result.MaskedFile)
	}

	if opts.jsonPath != "" {
		if err := writeJSONReport(opts.jsonPath, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to save JSON results: %v\n", err)
			return 1
		}
		if textOut {
			fmt.Fprintf(out, "Results saved to JSON: %s\n", opts.jsonPath)
		}
	}

	switch {
	case !textOut:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Abbreviated()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode results: %v\n", err)
			return 1
		}
	case !opts.noSummary:
		printSummary(out, result)
	}

	if textOut {
		fmt.Fprint(out, "✓ Analysis complete!\n\n")
	}
	return 0
}

func writeJSONReport(path string, result *processor.AnalysisResult) error {
	data, err := json.MarshalIndent(result.Abbreviated(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printHeader(out io.Writer) {
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintln(out, "  yaak-redact")
	fmt.Fprintln(out, "  Detect and redact PII in PDF, image and CSV files")
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintln(out)
}

func printSummary(out io.Writer, result *processor.AnalysisResult) {
	fmt.Fprintln(out, "\nAnalysis Results:")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "File: %s\n", result.FilePath)

	if result.Analysis != nil {
		a := result.Analysis
		fmt.Fprintf(out, "Total Rows: %d\n", a.TotalRows)
		fmt.Fprintf(out, "Total Columns: %d\n", a.TotalColumns)
		fmt.Fprintf(out, "Analyzed Rows: %d\n", a.AnalyzedRows)
		fmt.Fprintln(out, "\nPII Summary:")
		fmt.Fprintf(out, "  Columns with PII: %d\n", a.ColumnsWithPII())
		fmt.Fprintf(out, "  Total PII instances: %d\n", a.TotalPIIInstances())

		columns := make([]string, 0, len(a.ColumnResults))
		for name, col := range a.ColumnResults {
			if col.HasPII {
				columns = append(columns, name)
			}
		}
		sort.Strings(columns)
		for _, name := range columns {
			col := a.ColumnResults[name]
			fmt.Fprintf(out, "\nColumn: %s\n", name)
			fmt.Fprintf(out, "  PII Count: %d row(s)\n", col.PIICount)
			fmt.Fprintf(out, "  PII Types Detected: %s\n", strings.Join(sortedKeys(col.PIITypes), ", "))
			fmt.Fprintln(out, "  Detailed Findings:")
			for _, cell := range col.AllFindings {
				fmt.Fprintf(out, "\n    Row %d: %s\n", cell.Row, cell.Value)
				for _, f := range cell.Findings {
					fmt.Fprintf(out, "      → %s: %q (confidence: %.2f)\n", f.EntityType, f.Text, f.Score)
				}
			}
		}
	} else {
		fmt.Fprintf(out, "PII Found: %t\n", result.PIIFound)
		fmt.Fprintf(out, "Total PII Instances: %d\n", result.PIICount)
		if len(result.Findings) > 0 {
			fmt.Fprintln(out, "\nPII Details:")
			printFindingsByType(out, result.Findings)
		}
	}
	fmt.Fprintf(out, "\n%s\n\n", rule)
}

// printFindingsByType groups findings by entity type in order of first
// appearance and prints at most findingsPerType of each.
func printFindingsByType(out io.Writer, findings []pii.Finding) {
	var order []string
	byType := map[string][]pii.Finding{}
	for _, f := range findings {
		if _, ok := byType[f.EntityType]; !ok {
			order = append(order, f.EntityType)
		}
		byType[f.EntityType] = append(byType[f.EntityType], f)
	}

	for _, entityType := range order {
		group := byType[entityType]
		fmt.Fprintf(out, "\n  %s:\n", entityType)
		for i, f := range group {
			if i == findingsPerType {
				fmt.Fprintf(out, "    ... and %d more\n", len(group)-findingsPerType)
				break
			}
			fmt.Fprintf(out, "    - %s (confidence: %.2f)\n", f.Text, f.Score)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
