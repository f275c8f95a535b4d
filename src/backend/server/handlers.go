package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
	"github.com/hannes/yaak-redact/src/backend/processor"
)

// multipartMemory is kept in memory before spilling uploads to disk.
const multipartMemory = 8 << 20

var downloadTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".webp": "image/webp",
	".csv":  "text/csv",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a processing error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, processor.ErrInvalidRequest), errors.Is(err, pii.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, pii.ErrFileRead):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pii.ErrEngineNotReady), errors.Is(err, pii.ErrEngineInit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.reportError(r, err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeErr(w, status, err.Error())
}

// reportError logs err and sends it to Sentry when a client is configured.
func (s *Server) reportError(r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)

	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("path", r.URL.Path)
		scope.SetTag("method", r.Method)
		scope.SetTag("error_kind", pii.KindOf(err).String())
		hub.CaptureException(err)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "yaak-redact",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"entities":      "GET /api/entities",
			"analyze_text":  "POST /api/analyze/text",
			"analyze_pdf":   "POST /api/analyze/pdf",
			"analyze_image": "POST /api/analyze/image",
			"analyze_csv":   "POST /api/analyze/csv",
			"download":      "GET /api/download/{filename}",
			"jobs":          "GET /api/jobs",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.manager.Info()
	ready := s.manager.Ready()

	status, code := "healthy", http.StatusOK
	if info["error"] != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	resp := map[string]any{
		"status":          status,
		"service":         "yaak-redact",
		"analyzer_loaded": ready,
		"engine":          info,
	}
	if ready {
		if entities, err := s.manager.SupportedEntities(r.Context()); err == nil {
			resp["supported_entities"] = len(entities)
		}
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.processor.SupportedEntities(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":           len(entities),
		"entities":        entities,
		"common_entities": pii.CommonEntities,
	})
}

type textResponse struct {
	PIIFound       bool                   `json:"pii_found"`
	PIICount       int                    `json:"pii_count"`
	Findings       []pii.Finding          `json:"pii_findings"`
	Threshold      float64                `json:"threshold"`
	EntitiesFilter processor.EntityFilter `json:"entities_filter"`
}

func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := parseForm(r); err != nil {
		s.writeFormError(w, err)
		return
	}
	text := r.FormValue("text")
	if strings.TrimSpace(text) == "" {
		writeErr(w, http.StatusBadRequest, "text is required")
		return
	}
	opts, err := s.parseOptions(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	result, err := s.processor.AnalyzeText(ctx, text, opts.Threshold, opts.Entities)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	findings := result.Findings
	if findings == nil {
		findings = []pii.Finding{}
	}
	writeJSON(w, http.StatusOK, textResponse{
		PIIFound:       result.PIIFound,
		PIICount:       result.PIICount,
		Findings:       findings,
		Threshold:      result.Threshold,
		EntitiesFilter: result.EntitiesFilter,
	})
}

// analysisResponse reports file names rather than server paths.
type analysisResponse struct {
	*processor.AnalysisResult
	FilePath    string `json:"file_path"`
	MaskedFile  string `json:"masked_file,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	modality, err := extract.ParseModality(r.PathValue("kind"))
	if err != nil || modality == extract.ModalityText {
		writeErr(w, http.StatusNotFound, fmt.Sprintf("unknown analysis type %q", r.PathValue("kind")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeFormError(w, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if got, err := extract.DetectModality(name); err != nil || got != modality {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("file %q is not a supported %s file", name, modality))
		return
	}
	opts, err := s.parseOptions(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	dir, err := os.MkdirTemp("", "yaak-upload-*")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to create upload directory: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	if err := saveUpload(file, inputPath); err != nil {
		s.writeError(w, r, err)
		return
	}

	req := processor.AnalyzeRequest{
		Path:       inputPath,
		Modality:   modality,
		Threshold:  opts.Threshold,
		Entities:   opts.Entities,
		SampleSize: opts.SampleSize,
		Anonymize:  opts.Anonymize,
	}
	var outputPath string
	if req.Anonymize {
		outputPath = filepath.Join(s.config.Server.DownloadFolder, downloadName(name))
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	result, err := s.processor.Process(ctx, req, outputPath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := analysisResponse{AnalysisResult: result.Abbreviated(), FilePath: name}
	if result.MaskedFile != "" {
		resp.MaskedFile = filepath.Base(result.MaskedFile)
		resp.DownloadURL = "/api/download/" + url.PathEscape(resp.MaskedFile)
	}
	writeJSON(w, http.StatusOK, resp)
}

// downloadName prefixes the masked name with a short random id so
// concurrent uploads of the same file do not collide.
func downloadName(uploadName string) string {
	return processor.MaskedFileName(uuid.NewString()[:8] + "_" + uploadName)
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to store upload: %w", err)
	}
	return dst.Close()
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		writeErr(w, http.StatusBadRequest, "invalid file name")
		return
	}

	f, err := os.Open(filepath.Join(s.config.Server.DownloadFolder, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeErr(w, http.StatusNotFound, "File not found")
			return
		}
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		writeErr(w, http.StatusNotFound, "File not found")
		return
	}

	contentType, ok := downloadTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, stat.ModTime(), f)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.processor.Jobs()
	if jobs == nil {
		writeErr(w, http.StatusNotFound, "job journal is disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := jobs.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(list), "jobs": list})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobs := s.processor.Jobs()
	if jobs == nil {
		writeErr(w, http.StatusNotFound, "job journal is disabled")
		return
	}
	job, ok, err := jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
