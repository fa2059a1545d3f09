package ports

import (
	"image"
	"image/color"
)

// ImageFormat represents an image encoding format.
type ImageFormat int

const (
	FormatPNG ImageFormat = iota
	FormatJPEG
	// FormatTIFF keeps 16-bit grayscale samples intact.
	FormatTIFF
)

// String returns the file extension style name of the format.
func (f ImageFormat) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// TextAlign represents horizontal text alignment.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

// TextStyle configures DrawText.
type TextStyle struct {
	// FontPath is a TrueType font file. Empty uses the built-in face.
	FontPath string
	FontSize float64
	Color    color.Color
	Align    TextAlign
}

// Renderer creates canvases and encodes images for export.
type Renderer interface {
	CreateCanvas(width, height int, bg color.Color) Canvas
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)
	ResizeImage(img image.Image, width, height int) image.Image
}

// Canvas is a drawing surface. It is not safe for concurrent use.
type Canvas interface {
	DrawImage(img image.Image, x, y int)
	DrawRect(x, y, w, h int, col color.Color)
	DrawRectStroke(x, y, w, h int, col color.Color, strokeWidth float64)
	DrawText(text string, x, y int, style TextStyle)
	ToImage() image.Image
}
