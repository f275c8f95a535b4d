package pii

import (
	"fmt"
	"math"
	"testing"
)

func makeTokens(n, width int) ([]int64, []tokenOffset) {
	ids := make([]int64, n)
	offsets := make([]tokenOffset, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i)
		offsets[i] = tokenOffset{i * width, i*width + width/2}
	}
	return ids, offsets
}

// ============================================
// Tests for chunkTokens() - Pure Function
// ============================================

func TestChunkTokens_ShortText(t *testing.T) {
	ids, offsets := makeTokens(100, 5)
	chunks := chunkTokens(ids, offsets)

	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if !chunks[0].isFirst || !chunks[0].isLast {
		t.Error("Single chunk should be both first and last")
	}
	if len(chunks[0].tokenIDs) != 100 {
		t.Errorf("Expected 100 tokens, got %d", len(chunks[0].tokenIDs))
	}
}

func TestChunkTokens_ExactlyMaxSeqLen(t *testing.T) {
	ids, offsets := makeTokens(512, 5)
	chunks := chunkTokens(ids, offsets)

	if len(chunks) != 1 {
		t.Errorf("Expected 1 chunk for exactly maxSeqLen, got %d", len(chunks))
	}
}

func TestChunkTokens_LongText(t *testing.T) {
	// Chunks: 0-511, 448-959, 896-999
	ids, offsets := makeTokens(1000, 5)
	chunks := chunkTokens(ids, offsets)

	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks for 1000 tokens, got %d", len(chunks))
	}
	if !chunks[0].isFirst || chunks[0].isLast {
		t.Error("First chunk flags are wrong")
	}
	if chunks[1].isFirst || chunks[1].isLast {
		t.Error("Middle chunk flags are wrong")
	}
	if chunks[2].isFirst || !chunks[2].isLast {
		t.Error("Last chunk flags are wrong")
	}
	if chunks[2].startTokenIndex != 896 || len(chunks[2].tokenIDs) != 104 {
		t.Errorf("Expected last chunk at 896 with 104 tokens, got %d with %d",
			chunks[2].startTokenIndex, len(chunks[2].tokenIDs))
	}
}

func TestChunkTokens_OverlapAndOffsets(t *testing.T) {
	ids, offsets := makeTokens(600, 10)
	chunks := chunkTokens(ids, offsets)

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	overlap := chunks[0].startTokenIndex + len(chunks[0].tokenIDs) - chunks[1].startTokenIndex
	if overlap != chunkOverlap {
		t.Errorf("Expected overlap of %d, got %d", chunkOverlap, overlap)
	}
	if chunks[1].offsets[0][0] != 448*10 {
		t.Errorf("Expected second chunk to start at offset %d, got %d", 448*10, chunks[1].offsets[0][0])
	}
}

func TestChunkTokens_EmptyInput(t *testing.T) {
	chunks := chunkTokens(nil, nil)
	if len(chunks) != 1 || len(chunks[0].tokenIDs) != 0 {
		t.Errorf("Expected one empty chunk, got %+v", chunks)
	}
}

// ============================================
// Tests for mergeChunkEntities() - Pure Function
// ============================================

func TestMergeChunkEntities(t *testing.T) {
	tests := []struct {
		name     string
		chunks   [][]Entity
		expected []string
	}{
		{
			name:     "empty input",
			chunks:   nil,
			expected: nil,
		},
		{
			name: "exact duplicate keeps higher confidence",
			chunks: [][]Entity{
				{{Text: "John", Label: "PERSON", StartPos: 400, EndPos: 404, Confidence: 0.90}},
				{{Text: "John", Label: "PERSON", StartPos: 400, EndPos: 404, Confidence: 0.95}},
			},
			expected: []string{"PERSON@0.95"},
		},
		{
			name: "overlap with different labels",
			chunks: [][]Entity{
				{{Text: "123-45-6789", Label: "US_SSN", StartPos: 10, EndPos: 21, Confidence: 0.95}},
				{{Text: "123-45-6789", Label: "PHONE_NUMBER", StartPos: 10, EndPos: 21, Confidence: 0.60}},
			},
			expected: []string{"US_SSN@0.95"},
		},
		{
			name: "sorted by position",
			chunks: [][]Entity{
				{{Text: "Doe", Label: "SURNAME", StartPos: 100, EndPos: 103, Confidence: 0.85}},
				{{Text: "John", Label: "FIRSTNAME", StartPos: 0, EndPos: 4, Confidence: 0.90}},
			},
			expected: []string{"FIRSTNAME@0.90", "SURNAME@0.85"},
		},
		{
			name: "adjacent spans are not merged",
			chunks: [][]Entity{
				{{Text: "John", Label: "FIRSTNAME", StartPos: 0, EndPos: 4, Confidence: 0.90}},
				{{Text: "Doe", Label: "SURNAME", StartPos: 4, EndPos: 7, Confidence: 0.85}},
			},
			expected: []string{"FIRSTNAME@0.90", "SURNAME@0.85"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := mergeChunkEntities(tt.chunks)
			if len(merged) != len(tt.expected) {
				t.Fatalf("Expected %d entities, got %d", len(tt.expected), len(merged))
			}
			for i, e := range merged {
				got := fmt.Sprintf("%s@%.2f", e.Label, e.Confidence)
				if got != tt.expected[i] {
					t.Errorf("Entity %d: expected %s, got %s", i, tt.expected[i], got)
				}
			}
		})
	}
}

// ============================================
// Tests for decodeBIO() and label normalization
// ============================================

func oneHot(numLabels int, classes ...int) []float32 {
	logits := make([]float32, 0, len(classes)*numLabels)
	for _, c := range classes {
		row := make([]float32, numLabels)
		row[c] = 10
		logits = append(logits, row...)
	}
	return logits
}

func TestDecodeBIO_GroupsTokens(t *testing.T) {
	text := "Contact: john@example.com today"
	offsets := []tokenOffset{{0, 7}, {7, 8}, {9, 13}, {13, 14}, {14, 25}, {26, 31}}
	id2label := map[int]string{0: "O", 1: "B-EMAIL", 2: "I-EMAIL"}
	logits := oneHot(3, 0, 0, 1, 2, 2, 0)

	entities := decodeBIO(text, logits, 3, offsets, id2label, 0.5)

	if len(entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d: %+v", len(entities), entities)
	}
	e := entities[0]
	if e.Text != "john@example.com" || e.StartPos != 9 || e.EndPos != 25 || e.Label != "EMAIL" {
		t.Errorf("Unexpected entity: %+v", e)
	}
	if e.Confidence < 0.99 {
		t.Errorf("Expected high confidence, got %f", e.Confidence)
	}
}

func TestDecodeBIO_SpecialTokensAndLowConfidence(t *testing.T) {
	text := "John Smith"
	// [CLS] John Smith [SEP]
	offsets := []tokenOffset{{0, 0}, {0, 4}, {5, 10}, {0, 0}}
	id2label := map[int]string{0: "O", 1: "B-FIRSTNAME", 2: "B-SURNAME"}
	logits := oneHot(3, 1, 1, 2, 2)
	// flat logits for "Smith": confidence 1/3
	copy(logits[6:9], []float32{0, 0, 0})

	entities := decodeBIO(text, logits, 3, offsets, id2label, 0.5)

	if len(entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d: %+v", len(entities), entities)
	}
	if entities[0].Text != "John" {
		t.Errorf("Expected 'John', got %q", entities[0].Text)
	}
}

func TestNormalizeEntities_JoinsPersonParts(t *testing.T) {
	text := "John Doe called"
	entities := []Entity{
		{Text: "John", Label: "FIRSTNAME", StartPos: 0, EndPos: 4, Confidence: 0.9},
		{Text: "Doe", Label: "SURNAME", StartPos: 5, EndPos: 8, Confidence: 0.8},
	}

	out := normalizeEntities(text, entities)

	if len(out) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(out))
	}
	if out[0].Label != "PERSON" || out[0].Text != "John Doe" || out[0].Confidence != 0.8 {
		t.Errorf("Unexpected entity: %+v", out[0])
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := map[string]string{
		"EMAIL":        "EMAIL_ADDRESS",
		"telephonenum": "PHONE_NUMBER",
		"SOCIALNUM":    "US_SSN",
		"CITY":         "LOCATION",
		"PERSON":       "PERSON",
	}
	for in, want := range tests {
		if got := normalizeLabel(in); got != want {
			t.Errorf("normalizeLabel(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestSoftmaxArgmax(t *testing.T) {
	class, prob := softmaxArgmax([]float32{1, 1})
	if class != 0 || math.Abs(prob-0.5) > 1e-9 {
		t.Errorf("Expected (0, 0.5), got (%d, %f)", class, prob)
	}
	if class, _ := softmaxArgmax([]float32{0, 3, 1}); class != 1 {
		t.Errorf("Expected class 1, got %d", class)
	}
}

func TestSupportedFromLabels(t *testing.T) {
	got := supportedFromLabels(map[int]string{0: "O", 1: "B-EMAIL", 2: "I-EMAIL", 3: "B-FIRSTNAME", 4: "B-SURNAME"})
	if len(got) != 2 || got[0] != "EMAIL_ADDRESS" || got[1] != "PERSON" {
		t.Errorf("Unexpected supported entities %v", got)
	}
}
