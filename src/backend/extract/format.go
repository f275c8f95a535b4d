// Package extract turns input documents into text for detection: CSV
// tables, PDF page text and OCR words with their boxes.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// Modality is the document family a file belongs to.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityCSV   Modality = "csv"
	ModalityPDF   Modality = "pdf"
	ModalityImage Modality = "image"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// IsImageExtension reports whether ext (with dot) is a supported raster format.
func IsImageExtension(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}

// DetectModality maps a file path to its modality by extension.
func DetectModality(path string) (Modality, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".csv":
		return ModalityCSV, nil
	case ext == ".pdf":
		return ModalityPDF, nil
	case imageExtensions[ext]:
		return ModalityImage, nil
	}
	return "", pii.NewPathError(pii.KindUnsupportedFormat, "detect_modality", path,
		fmt.Errorf("extension %q is not one of csv, pdf, png, jpg, jpeg, gif, bmp, tiff, webp", ext))
}

// ParseModality validates a caller-supplied modality name.
func ParseModality(s string) (Modality, error) {
	switch m := Modality(strings.ToLower(strings.TrimSpace(s))); m {
	case ModalityCSV, ModalityPDF, ModalityImage, ModalityText:
		return m, nil
	}
	return "", pii.NewError(pii.KindUnsupportedFormat, "parse_modality", fmt.Errorf("unknown modality %q", s))
}
