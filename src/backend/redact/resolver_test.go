package redact

import (
	"reflect"
	"testing"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

func TestContainmentResolver_MultiWordName(t *testing.T) {
	words := []pii.OCRWord{
		{Text: "JOHN", Box: pii.BoundingBox{X: 0, Y: 0, Width: 40, Height: 10}},
		{Text: "DOE", Box: pii.BoundingBox{X: 45, Y: 0, Width: 40, Height: 10}},
	}

	got := ContainmentResolver{}.Resolve("John Doe", words)
	expected := []pii.BoundingBox{words[0].Box, words[1].Box}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestContainmentResolver_Cases(t *testing.T) {
	box := func(x int) pii.BoundingBox { return pii.BoundingBox{X: x, Width: 10, Height: 10} }

	tests := []struct {
		name     string
		target   string
		words    []pii.OCRWord
		expected []pii.BoundingBox
	}{
		{
			name:     "word contains target",
			target:   "john@example.com",
			words:    []pii.OCRWord{{Text: "Email:john@example.com", Box: box(1)}, {Text: "Phone", Box: box(2)}},
			expected: []pii.BoundingBox{box(1)},
		},
		{
			name:     "whitespace trimmed from words",
			target:   "555-0100",
			words:    []pii.OCRWord{{Text: " 555-0100 ", Box: box(3)}},
			expected: []pii.BoundingBox{box(3)},
		},
		{
			name:     "empty words skipped",
			target:   "Doe",
			words:    []pii.OCRWord{{Text: "  ", Box: box(4)}, {Text: "", Box: box(5)}},
			expected: nil,
		},
		{
			name:     "empty target resolves to nothing",
			target:   " \t ",
			words:    []pii.OCRWord{{Text: "anything", Box: box(6)}},
			expected: nil,
		},
		{
			name:     "short word over-matches",
			target:   "John Doe",
			words:    []pii.OCRWord{{Text: "do", Box: box(7)}, {Text: "Jane", Box: box(8)}},
			expected: []pii.BoundingBox{box(7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContainmentResolver{}.Resolve(tt.target, tt.words)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
