package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
	"github.com/hannes/yaak-redact/src/backend/store"
)

type fakePDF struct {
	doc extract.PDFText
}

func (f fakePDF) Extract(ctx context.Context, path string) (extract.PDFText, error) {
	return f.doc, nil
}

type fakeOCR struct {
	page extract.OCRPage
}

func (f fakeOCR) Recognize(ctx context.Context, image []byte) (extract.OCRPage, error) {
	return f.page, nil
}

func (f fakeOCR) Close() error { return nil }

// newTestProcessor wires the regex detector and replace anonymizer.
func newTestProcessor(t *testing.T, cfg Config) *Processor {
	t.Helper()
	if cfg.Manager == nil {
		cfg.Manager = pii.NewEngineManager(pii.NewEngineFactory(pii.EngineConfig{}), "en", nil)
		t.Cleanup(func() { _ = cfg.Manager.Close() })
	}
	if cfg.Jobs == nil {
		cfg.Jobs = store.NewInMemoryJobStore()
	}
	cfg.SampleSeed = 42
	cfg.MaskPadding = 2
	return New(cfg)
}

func TestAnalyzeText_Email(t *testing.T) {
	p := newTestProcessor(t, Config{})
	ctx := context.Background()

	result, err := p.AnalyzeText(ctx, "Contact: john@example.com", 0.35, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("Expected 1 finding, got %+v", result.Findings)
	}
	f := result.Findings[0]
	if f.EntityType != "EMAIL_ADDRESS" || f.Text != "john@example.com" {
		t.Errorf("Expected EMAIL_ADDRESS john@example.com, got %s %q", f.EntityType, f.Text)
	}
	if f.Score < 0.35 || f.Start < 0 || f.End > len("Contact: john@example.com") {
		t.Errorf("Finding violates bounds: %+v", f)
	}

	anonymized, err := p.spans.Anonymize(ctx, "Contact: john@example.com", result.Findings)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(anonymized, "john@example.com") {
		t.Errorf("Expected email removed, got %q", anonymized)
	}
}

func TestAnalyze_InvalidInput(t *testing.T) {
	p := newTestProcessor(t, Config{})
	ctx := context.Background()

	if _, err := p.Analyze(ctx, AnalyzeRequest{Path: "notes.docx", Threshold: 0.35}); !errors.Is(err, pii.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := p.Analyze(ctx, AnalyzeRequest{Path: "a.csv", Threshold: 1.5}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
	if _, err := p.Analyze(ctx, AnalyzeRequest{Path: filepath.Join(t.TempDir(), "missing.csv"), Threshold: 0.35}); !errors.Is(err, pii.ErrFileRead) {
		t.Errorf("Expected ErrFileRead, got %v", err)
	}
}

func TestProcess_EngineInitFailureIsSticky(t *testing.T) {
	manager := pii.NewEngineManager(func(ctx context.Context) (*pii.SharedEngine, error) {
		return nil, errors.New("model missing")
	}, "en", nil)
	jobs := store.NewInMemoryJobStore()
	p := newTestProcessor(t, Config{Manager: manager, Jobs: jobs})
	ctx := context.Background()

	if _, err := p.AnalyzeText(ctx, "Contact: john@example.com", 0.35, nil); !errors.Is(err, pii.ErrEngineInit) {
		t.Fatalf("Expected ErrEngineInit, got %v", err)
	}
	result, err := p.AnalyzeText(ctx, "Contact: john@example.com", 0.35, nil)
	if !errors.Is(err, pii.ErrEngineNotReady) {
		t.Fatalf("Expected ErrEngineNotReady, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected no result, got %+v", result)
	}

	path := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(path, []byte("email\nann@example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(ctx, AnalyzeRequest{Path: path, Threshold: 0.35}, ""); !errors.Is(err, pii.ErrEngineNotReady) {
		t.Errorf("Expected ErrEngineNotReady, got %v", err)
	}
	list, _ := jobs.ListJobs(ctx, 0)
	if len(list) != 1 || list[0].Status != store.StatusFailed || list[0].Error != "engine_not_ready" {
		t.Errorf("Expected one failed job, got %+v", list)
	}
}

func TestProcess_CSVSampled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "people.csv")
	data := "name,email\nAnn,ann@example.com\nBob,bob@example.com\nCid,cid@example.com\n"
	if err := os.WriteFile(in, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	jobs := store.NewInMemoryJobStore()
	p := newTestProcessor(t, Config{Jobs: jobs})
	result, err := p.Process(context.Background(), AnalyzeRequest{
		Path: in, Threshold: 0.35, SampleSize: 2, Anonymize: true,
	}, "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Analysis.AnalyzedRows != 2 || !result.Analysis.IsSampled {
		t.Errorf("Expected 2 sampled rows, got %+v", result.Analysis)
	}
	if result.PIICount != 2 || result.Summary.ColumnsWithPII != 1 {
		t.Errorf("Expected 2 instances in 1 column, got %d / %d", result.PIICount, result.Summary.ColumnsWithPII)
	}
	expectedOut := filepath.Join(dir, "people_masked.csv")
	if result.MaskedFile != expectedOut {
		t.Errorf("Expected %s, got %s", expectedOut, result.MaskedFile)
	}

	out, err := extract.ReadCSV(expectedOut)
	if err != nil {
		t.Fatal(err)
	}
	remaining := 0
	for _, row := range out.Rows {
		if strings.Contains(row[1], "@") {
			remaining++
		}
	}
	if remaining != 1 {
		t.Errorf("Expected exactly 1 untouched email, got %d", remaining)
	}

	job, ok, _ := jobs.GetJob(context.Background(), result.ID)
	if !ok || job.Status != store.StatusCompleted || job.EntityCounts["EMAIL_ADDRESS"] != 2 || job.MaskedFile != "people_masked.csv" {
		t.Errorf("Unexpected job %+v", job)
	}
}

func TestProcess_PDF(t *testing.T) {
	p := newTestProcessor(t, Config{PDF: fakePDF{doc: extract.PDFText{
		Text:      "Invoice for john@example.com\n\nCall 555-123-4567 today",
		PageCount: 2,
	}}})
	out := filepath.Join(t.TempDir(), "invoice_masked.pdf")

	result, err := p.Process(context.Background(), AnalyzeRequest{
		Path: "invoice.pdf", Threshold: 0.35, Anonymize: true,
	}, out)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	types := result.EntityTypes()
	if len(types) != 2 || types[0] != "EMAIL_ADDRESS" || types[1] != "PHONE_NUMBER" {
		t.Errorf("Expected email and phone, got %v", types)
	}
	if result.AnonymizedText != "Invoice for <EMAIL_ADDRESS>\n\nCall <PHONE_NUMBER> today" {
		t.Errorf("Unexpected anonymized text %q", result.AnonymizedText)
	}
	if len(result.Targets) != 2 {
		t.Errorf("Expected 2 paragraph targets, got %d", len(result.Targets))
	}
	if data, err := os.ReadFile(out); err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("Expected PDF artifact, got err=%v", err)
	}
}

func TestProcess_Image(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.png")
	img := image.NewRGBA(image.Rect(0, 0, 120, 30))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(in, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	ocr := fakeOCR{page: extract.OCRPage{
		Text: "Contact john@example.com\n",
		Words: []pii.OCRWord{
			{Text: "Contact", Box: pii.BoundingBox{X: 5, Y: 5, Width: 30, Height: 10}},
			{Text: "john@example.com", Box: pii.BoundingBox{X: 40, Y: 5, Width: 70, Height: 10}},
		},
	}}
	p := newTestProcessor(t, Config{OCR: ocr, MaskColor: color.Black})

	result, err := p.Process(context.Background(), AnalyzeRequest{Path: in, Threshold: 0.35, Anonymize: true}, "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ImageInfo == nil || result.ImageInfo.Width != 120 || result.ImageInfo.Format != "png" {
		t.Errorf("Unexpected image info %+v", result.ImageInfo)
	}
	if result.ExtractedText != "Contact john@example.com" {
		t.Errorf("Expected trimmed OCR text, got %q", result.ExtractedText)
	}
	if len(result.Targets) != 1 {
		t.Fatalf("Expected 1 region, got %d", len(result.Targets))
	}
	region, ok := result.Targets[0].(pii.RegionTarget)
	if !ok || region.Box != (pii.BoundingBox{X: 38, Y: 3, Width: 74, Height: 14}) {
		t.Errorf("Unexpected region %+v", result.Targets[0])
	}
	if result.MaskedFile != filepath.Join(dir, "scan_masked.png") {
		t.Errorf("Unexpected masked file %s", result.MaskedFile)
	}
}

func TestAnalyze_ImageWithoutOCR(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.png")
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)))
	_ = os.WriteFile(in, buf.Bytes(), 0o600)

	p := newTestProcessor(t, Config{})
	if _, err := p.Analyze(context.Background(), AnalyzeRequest{Path: in, Threshold: 0.35}); !errors.Is(err, pii.ErrFileRead) {
		t.Errorf("Expected ErrFileRead, got %v", err)
	}
}

func TestMaskedFileName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report_masked.pdf",
		"/data/people.csv":    "/data/people_masked.csv",
		"photo.WEBP":          "photo_masked.png",
		"archive.tar.gz.jpeg": "archive.tar.gz_masked.jpeg",
	}
	for in, expected := range tests {
		if got := MaskedFileName(in); got != expected {
			t.Errorf("MaskedFileName(%q): expected %q, got %q", in, expected, got)
		}
	}
}

func TestEntityFilter_MarshalJSON(t *testing.T) {
	all, _ := json.Marshal(EntityFilter(nil))
	if string(all) != `"all"` {
		t.Errorf("Expected \"all\", got %s", all)
	}
	some, _ := json.Marshal(EntityFilter{"PERSON"})
	if string(some) != `["PERSON"]` {
		t.Errorf("Expected [\"PERSON\"], got %s", some)
	}
}

func TestAbbreviated(t *testing.T) {
	long := strings.Repeat("é", AbbreviateLimit+1)
	r := &AnalysisResult{OriginalText: long, ExtractedText: "short", AnonymizedText: long}

	out := r.Abbreviated()
	if out.OriginalText != "<501 characters>" {
		t.Errorf("Expected '<501 characters>', got %q", out.OriginalText)
	}
	if out.ExtractedText != "short" {
		t.Errorf("Expected short text to be kept, got %q", out.ExtractedText)
	}
	if r.OriginalText != long {
		t.Error("Expected the original result to be left unchanged")
	}
	if got := Abbreviate(strings.Repeat("a", AbbreviateLimit)); len(got) != AbbreviateLimit {
		t.Errorf("Expected text at the limit to be kept, got %q", got)
	}
}
