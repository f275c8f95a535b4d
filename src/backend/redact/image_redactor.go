package redact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"

	"github.com/hannes/yaak-redact/src/backend/extract"
	"github.com/hannes/yaak-redact/src/backend/pii"
)

// DefaultMaskPadding is the number of pixels a mask extends past its box on
// every side.
const DefaultMaskPadding = 2

// ParseColor accepts an SVG color name ("black", "darkred") or #rrggbb.
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	if len(s) == 7 && s[0] == '#' {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err == nil {
			return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
		}
	}
	return nil, fmt.Errorf("invalid mask color %q", s)
}

// ImageRedactor draws opaque boxes over the OCR words matching each
// finding.
type ImageRedactor struct {
	resolver PositionResolver
	ocr      extract.OCREngine
	color    color.Color
	padding  int
	logger   *slog.Logger
}

// NewImageRedactor builds a redactor. ocr may be nil when callers always
// pass words to Redact.
func NewImageRedactor(resolver PositionResolver, ocr extract.OCREngine, maskColor color.Color, padding int, logger *slog.Logger) *ImageRedactor {
	if resolver == nil {
		resolver = ContainmentResolver{}
	}
	if maskColor == nil {
		maskColor = color.Black
	}
	if padding < 0 {
		padding = DefaultMaskPadding
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageRedactor{
		resolver: resolver,
		ocr:      ocr,
		color:    maskColor,
		padding:  padding,
		logger:   logger.With("component", "image_redactor"),
	}
}

// Regions resolves every finding independently and returns the padded mask
// rectangles clipped to bounds. Overlapping regions are kept.
func (r *ImageRedactor) Regions(bounds image.Rectangle, findings []pii.Finding, words []pii.OCRWord) []image.Rectangle {
	var rects []image.Rectangle
	for _, f := range findings {
		for _, b := range r.resolver.Resolve(f.Text, words) {
			rect := image.Rect(
				b.X-r.padding, b.Y-r.padding,
				b.X+b.Width+r.padding, b.Y+b.Height+r.padding,
			).Add(bounds.Min).Intersect(bounds)
			if !rect.Empty() {
				rects = append(rects, rect)
			}
		}
	}
	return rects
}

// Mask returns a copy of src with every rectangle filled. Paletted images
// stay paletted and are filled with the nearest palette entry, so pixels
// outside the rectangles keep their exact index.
func (r *ImageRedactor) Mask(src image.Image, rects []image.Rectangle) image.Image {
	bounds := src.Bounds()

	if p, ok := src.(*image.Paletted); ok {
		dst := image.NewPaletted(bounds, p.Palette)
		copy(dst.Pix, p.Pix)
		idx := uint8(p.Palette.Index(r.color))
		for _, rect := range rects {
			for y := rect.Min.Y; y < rect.Max.Y; y++ {
				for x := rect.Min.X; x < rect.Max.X; x++ {
					dst.SetColorIndex(x, y, idx)
				}
			}
		}
		return dst
	}

	var dst draw.Image
	switch src.(type) {
	case *image.Gray:
		dst = image.NewGray(bounds)
	case *image.NRGBA:
		dst = image.NewNRGBA(bounds)
	case *image.Gray16:
		dst = image.NewGray16(bounds)
	case *image.RGBA64:
		dst = image.NewRGBA64(bounds)
	case *image.NRGBA64:
		dst = image.NewNRGBA64(bounds)
	case *image.CMYK:
		dst = image.NewCMYK(bounds)
	default:
		dst = image.NewRGBA(bounds)
	}
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	fill := image.NewUniform(r.color)
	for _, rect := range rects {
		draw.Draw(dst, rect, fill, image.Point{}, draw.Src)
	}
	return dst
}

// Redact masks the regions of imagePath matching findings and writes the
// result to outputPath in the input's format (webp is written as PNG, see
// extract.OutputFormat). When words is nil the image is run through OCR
// first. If nothing is masked the input bytes are copied unchanged.
func (r *ImageRedactor) Redact(ctx context.Context, imagePath string, findings []pii.Finding, words []pii.OCRWord, outputPath string) ([]pii.RegionTarget, error) {
	if outputPath == "" {
		return nil, pii.NewError(pii.KindRedaction, "redact_image", errNoOutputPath)
	}

	img, err := extract.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}

	if words == nil && len(findings) > 0 {
		if r.ocr == nil {
			return nil, pii.NewPathError(pii.KindRedaction, "redact_image", imagePath, errors.New("no OCR engine configured"))
		}
		page, err := r.ocr.Recognize(ctx, img.Data)
		if err != nil {
			return nil, pii.NewPathError(pii.KindFileRead, "ocr", imagePath, err)
		}
		words = page.Words
	}

	rects := r.Regions(img.Image.Bounds(), findings, words)
	targets := make([]pii.RegionTarget, 0, len(rects))
	for _, rect := range rects {
		targets = append(targets, pii.RegionTarget{Box: boxOf(rect, img.Image.Bounds().Min)})
	}

	outFormat := extract.OutputFormat(img.Format)
	if len(rects) == 0 && outFormat == img.Format {
		if err := copyFileAtomic(imagePath, outputPath); err != nil {
			return nil, err
		}
		r.logger.Info("image copied, nothing to mask", "output", outputPath)
		return targets, nil
	}

	masked := r.Mask(img.Image, rects)
	if err := writeFileAtomic(outputPath, func(w io.Writer) error {
		return extract.EncodeImage(w, masked, outFormat)
	}); err != nil {
		return nil, err
	}

	r.logger.Info("image redacted", "regions", len(targets), "format", outFormat, "output", outputPath)
	return targets, nil
}

func boxOf(rect image.Rectangle, origin image.Point) pii.BoundingBox {
	rect = rect.Sub(origin)
	return pii.BoundingBox{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
}
