package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type analyzeOptions struct {
	Threshold  float64
	Entities   []string
	Anonymize  bool
	SampleSize int
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.config.Server.MaxUploadMB) << 20
}

// parseForm accepts urlencoded and multipart bodies.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

func (s *Server) writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeErr(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.config.Server.MaxUploadMB))
		return
	}
	writeErr(w, http.StatusBadRequest, "invalid form: "+err.Error())
}

// parseOptions reads threshold, entities, anonymize and sample_size from
// the parsed form, falling back to configured defaults.
func (s *Server) parseOptions(r *http.Request) (analyzeOptions, error) {
	opts := analyzeOptions{Threshold: s.config.Analysis.DefaultThreshold}

	if v := strings.TrimSpace(r.FormValue("threshold")); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("threshold must be a number (current value: %s)", v)
		}
		opts.Threshold = t
	}
	opts.Entities = splitEntities(r.FormValue("entities"))

	if v := strings.TrimSpace(r.FormValue("anonymize")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("anonymize must be true or false (current value: %s)", v)
		}
		opts.Anonymize = b
	}
	if v := strings.TrimSpace(r.FormValue("sample_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("sample_size must be a non-negative integer (current value: %s)", v)
		}
		opts.SampleSize = n
	}
	return opts, nil
}

func splitEntities(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
