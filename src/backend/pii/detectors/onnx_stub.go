//go:build !onnx

package pii

import "errors"

// ErrONNXNotEnabled is returned when the binary was built without the onnx tag.
var ErrONNXNotEnabled = errors.New("onnx model detector not enabled: rebuild with -tags onnx")

// NewONNXModelDetector is unavailable without the onnx build tag.
func NewONNXModelDetector(modelDir, libraryPath string, minConfidence float64) (Detector, error) {
	return nil, ErrONNXNotEnabled
}
