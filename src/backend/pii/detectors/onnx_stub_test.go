//go:build !onnx

package pii

import (
	"errors"
	"testing"
)

func TestONNXStub_NotEnabled(t *testing.T) {
	_, err := NewDetector(DetectorNameONNXModel, FactoryConfig{ModelDir: "model"})
	if !errors.Is(err, ErrONNXNotEnabled) {
		t.Errorf("Expected ErrONNXNotEnabled, got %v", err)
	}
}
