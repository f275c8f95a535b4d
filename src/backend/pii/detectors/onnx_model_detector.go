//go:build onnx

package pii

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/daulet/tokenizers"
	onnxruntime "github.com/yalue/onnxruntime_go"
)

// ONNXModelDetector runs a token-classification model through onnxruntime.
// Inference shares fixed-size tensors, so Detect calls are serialized.
type ONNXModelDetector struct {
	mu            sync.Mutex
	tokenizer     *tokenizers.Tokenizer
	session       *onnxruntime.AdvancedSession
	inputTensor   *onnxruntime.Tensor[int64]
	maskTensor    *onnxruntime.Tensor[int64]
	outputTensor  *onnxruntime.Tensor[float32]
	id2label      map[int]string
	numLabels     int
	minConfidence float64
}

type labelMappings struct {
	ID2Label map[string]string `json:"id2label"`
	PII      struct {
		ID2Label map[string]string `json:"id2label"`
	} `json:"pii"`
}

// NewONNXModelDetector loads model.onnx, tokenizer.json and
// label_mappings.json from modelDir. libraryPath points at the onnxruntime
// shared library; when empty ONNXRUNTIME_SHARED_LIBRARY_PATH is used.
func NewONNXModelDetector(modelDir, libraryPath string, minConfidence float64) (*ONNXModelDetector, error) {
	if libraryPath == "" {
		libraryPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	if libraryPath != "" {
		onnxruntime.SetSharedLibraryPath(libraryPath)
	}
	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
		}
	}

	id2label, err := loadLabels(filepath.Join(modelDir, "label_mappings.json"))
	if err != nil {
		return nil, err
	}
	numLabels := 0
	for id := range id2label {
		if id >= numLabels {
			numLabels = id + 1
		}
	}

	tk, err := tokenizers.FromFile(filepath.Join(modelDir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	d := &ONNXModelDetector{
		tokenizer:     tk,
		id2label:      id2label,
		numLabels:     numLabels,
		minConfidence: minConfidence,
	}
	if err := d.initializeSession(filepath.Join(modelDir, "model.onnx")); err != nil {
		_ = tk.Close()
		return nil, err
	}

	slog.Info("onnx model loaded", "component", "detector", "labels", numLabels, "model_dir", modelDir)
	return d, nil
}

func loadLabels(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label mappings: %w", err)
	}
	var m labelMappings
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse label mappings: %w", err)
	}
	raw := m.ID2Label
	if len(raw) == 0 {
		raw = m.PII.ID2Label
	}
	if len(raw) == 0 {
		return nil, errors.New("label mappings contain no id2label entries")
	}

	labels := make(map[int]string, len(raw))
	for idStr, label := range raw {
		id, err := strconv.Atoi(idStr)
		if err != nil || id < 0 {
			continue
		}
		labels[id] = label
	}
	return labels, nil
}

func (d *ONNXModelDetector) initializeSession(modelPath string) error {
	inputs, outputs, err := onnxruntime.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(inputs) < 2 || len(outputs) < 1 {
		return fmt.Errorf("model %s: expected input_ids, attention_mask and a logits output", modelPath)
	}

	inputShape := onnxruntime.NewShape(1, maxSeqLen)
	inputTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, maxSeqLen))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	maskTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, maxSeqLen))
	if err != nil {
		_ = inputTensor.Destroy()
		return fmt.Errorf("failed to create mask tensor: %w", err)
	}
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.NewShape(1, maxSeqLen, int64(d.numLabels)))
	if err != nil {
		_ = inputTensor.Destroy()
		_ = maskTensor.Destroy()
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := onnxruntime.NewAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{outputs[0].Name},
		[]onnxruntime.Value{inputTensor, maskTensor},
		[]onnxruntime.Value{outputTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = maskTensor.Destroy()
		_ = outputTensor.Destroy()
		return fmt.Errorf("failed to create session: %w", err)
	}

	d.session = session
	d.inputTensor = inputTensor
	d.maskTensor = maskTensor
	d.outputTensor = outputTensor
	return nil
}

func (d *ONNXModelDetector) GetName() string {
	return DetectorNameONNXModel
}

// Detect tokenizes the text, runs each 512-token window through the model
// and merges the windows' entities.
func (d *ONNXModelDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoding := d.tokenizer.EncodeWithOptions(input.Text, true, tokenizers.WithReturnOffsets())
	n := len(encoding.IDs)
	if len(encoding.Offsets) < n {
		n = len(encoding.Offsets)
	}
	ids := make([]int64, n)
	offsets := make([]tokenOffset, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(encoding.IDs[i])
		offsets[i] = tokenOffset{int(encoding.Offsets[i][0]), int(encoding.Offsets[i][1])}
	}

	var perChunk [][]Entity
	for _, chunk := range chunkTokens(ids, offsets) {
		if err := ctx.Err(); err != nil {
			return DetectorOutput{}, err
		}
		d.fillInputs(chunk.tokenIDs)
		if err := d.session.Run(); err != nil {
			return DetectorOutput{}, fmt.Errorf("failed to run inference: %w", err)
		}
		logits := d.outputTensor.GetData()[:len(chunk.tokenIDs)*d.numLabels]
		perChunk = append(perChunk, decodeBIO(input.Text, logits, d.numLabels, chunk.offsets, d.id2label, d.minConfidence))
	}

	entities := normalizeEntities(input.Text, mergeChunkEntities(perChunk))
	return DetectorOutput{
		Text:     input.Text,
		Entities: filterEntities(input, entities),
	}, nil
}

func (d *ONNXModelDetector) fillInputs(tokenIDs []int64) {
	inputData := d.inputTensor.GetData()
	maskData := d.maskTensor.GetData()
	for i := range inputData {
		inputData[i] = 0
		maskData[i] = 0
	}
	copy(inputData, tokenIDs)
	for i := range tokenIDs {
		maskData[i] = 1
	}
}

func (d *ONNXModelDetector) SupportedEntities(ctx context.Context, language string) ([]string, error) {
	return supportedFromLabels(d.id2label), nil
}

// Close implements the Detector interface
func (d *ONNXModelDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session: %w", err))
		}
	}
	if d.inputTensor != nil {
		if err := d.inputTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy input tensor: %w", err))
		}
	}
	if d.maskTensor != nil {
		if err := d.maskTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy mask tensor: %w", err))
		}
	}
	if d.outputTensor != nil {
		if err := d.outputTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy output tensor: %w", err))
		}
	}
	if d.tokenizer != nil {
		if err := d.tokenizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close tokenizer: %w", err))
		}
	}
	if err := onnxruntime.DestroyEnvironment(); err != nil {
		errs = append(errs, fmt.Errorf("failed to destroy environment: %w", err))
	}
	return errors.Join(errs...)
}
