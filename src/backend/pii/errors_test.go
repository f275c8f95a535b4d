package pii

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NewPathError(KindFileRead, "read_csv", "data.csv", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("analyze: %w", err)

	if !errors.Is(wrapped, ErrFileRead) {
		t.Error("Expected wrapped error to match ErrFileRead")
	}
	if errors.Is(wrapped, ErrDetection) {
		t.Error("Expected wrapped error not to match ErrDetection")
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("Expected cause to be reachable")
	}
	if KindOf(wrapped) != KindFileRead {
		t.Errorf("Expected KindFileRead, got %v", KindOf(wrapped))
	}
	if KindOf(io.EOF) != KindUnknown {
		t.Errorf("Expected KindUnknown for foreign error, got %v", KindOf(io.EOF))
	}
}

func TestError_Message(t *testing.T) {
	err := NewPathError(KindUnsupportedFormat, "detect_modality", "notes.docx", errors.New("extension .docx"))
	expected := "detect_modality: unsupported_format (notes.docx): extension .docx"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
	if ErrEngineNotReady.Error() != "engine_not_ready" {
		t.Errorf("Expected bare kind message, got %q", ErrEngineNotReady.Error())
	}
}
