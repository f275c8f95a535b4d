package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hannes/yaak-redact/src/backend/pii"
)

// JPEGQuality is used when re-encoding JPEG output.
const JPEGQuality = 95

// ImageInfo describes a decoded raster image.
type ImageInfo struct {
	Format     string `json:"format"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ColorModel string `json:"color_model"`
}

// Image is a decoded image plus the raw bytes it came from.
type Image struct {
	Image  image.Image
	Format string
	Data   []byte
}

// Info summarizes the image.
func (im *Image) Info() ImageInfo {
	b := im.Image.Bounds()
	return ImageInfo{
		Format:     im.Format,
		Width:      b.Dx(),
		Height:     b.Dy(),
		ColorModel: ColorModelName(im.Image.ColorModel()),
	}
}

// LoadImage reads and decodes an image file.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pii.NewPathError(pii.KindFileRead, "load_image", path, err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, pii.NewPathError(pii.KindFileRead, "load_image", path, err)
	}
	return &Image{Image: img, Format: format, Data: data}, nil
}

// EncodeImage writes img in the given format. webp has no encoder in the
// stack and is written as PNG; see OutputFormat.
func EncodeImage(w io.Writer, img image.Image, format string) error {
	switch OutputFormat(format) {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "png":
		return png.Encode(w, img)
	}
	return fmt.Errorf("no encoder for image format %q", format)
}

// OutputFormat is the format a redacted image of the given input format is
// written in.
func OutputFormat(format string) string {
	if format == "webp" {
		return "png"
	}
	return format
}

// ColorModelName names the common color models.
func ColorModelName(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "palette"
	}
	switch m {
	case color.RGBAModel:
		return "rgba"
	case color.RGBA64Model:
		return "rgba64"
	case color.NRGBAModel:
		return "nrgba"
	case color.NRGBA64Model:
		return "nrgba64"
	case color.GrayModel:
		return "gray"
	case color.Gray16Model:
		return "gray16"
	case color.YCbCrModel:
		return "ycbcr"
	case color.CMYKModel:
		return "cmyk"
	case color.AlphaModel:
		return "alpha"
	}
	return "other"
}
