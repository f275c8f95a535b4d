package pii

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newPresidioServer(t *testing.T, results string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Language != "en" {
			http.Error(w, "unexpected language "+req.Language, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(results))
	})
	mux.HandleFunc("GET /supportedentities", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["EMAIL_ADDRESS","PERSON"]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestPresidioDetector_Detect(t *testing.T) {
	server := newPresidioServer(t, `[{"entity_type":"PERSON","start":0,"end":8,"score":0.85}]`)
	detector := NewPresidioDetector(server.URL + "/")

	output, err := detector.Detect(context.Background(), DetectorInput{Text: "John Doe lives here"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(output.Entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(output.Entities))
	}
	e := output.Entities[0]
	if e.Text != "John Doe" || e.Label != "PERSON" || e.Confidence != 0.85 {
		t.Errorf("Unexpected entity: %+v", e)
	}
}

func TestPresidioDetector_Detect_CodePointOffsets(t *testing.T) {
	// "Zoë" is 3 code points and 4 bytes.
	server := newPresidioServer(t, `[{"entity_type":"PERSON","start":0,"end":9,"score":0.9}]`)
	detector := NewPresidioDetector(server.URL)

	output, err := detector.Detect(context.Background(), DetectorInput{Text: "Zoë Smith called"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	e := output.Entities[0]
	if e.Text != "Zoë Smith" {
		t.Errorf("Expected 'Zoë Smith', got %q", e.Text)
	}
	if e.EndPos != 10 {
		t.Errorf("Expected byte end 10, got %d", e.EndPos)
	}
}

func TestPresidioDetector_Detect_OutOfRange(t *testing.T) {
	server := newPresidioServer(t, `[{"entity_type":"PERSON","start":0,"end":99,"score":0.9}]`)
	detector := NewPresidioDetector(server.URL)

	if _, err := detector.Detect(context.Background(), DetectorInput{Text: "short"}); err == nil {
		t.Error("Expected error for span outside text")
	}
}

func TestPresidioDetector_Detect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	detector := NewPresidioDetector(server.URL)
	if _, err := detector.Detect(context.Background(), DetectorInput{Text: "John"}); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestPresidioDetector_SupportedEntities(t *testing.T) {
	server := newPresidioServer(t, `[]`)
	detector := NewPresidioDetector(server.URL)
	defer detector.Close()

	entities, err := detector.SupportedEntities(context.Background(), "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entities) != 2 || entities[1] != "PERSON" {
		t.Errorf("Unexpected entities %v", entities)
	}
	if detector.GetName() != "presidio_detector" {
		t.Errorf("Expected name 'presidio_detector', got '%s'", detector.GetName())
	}
}
