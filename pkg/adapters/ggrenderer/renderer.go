// Package ggrenderer provides a renderer implementation using the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/user/framegrab/pkg/ports"
)

// Renderer implements ports.Renderer using the gg library for drawing and
// x/image for scaling and TIFF output.
type Renderer struct {
	png *png.Encoder
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPNGCompression sets the zlib level used for PNG output. Bulk frame
// exports usually want png.BestSpeed.
func WithPNGCompression(level png.CompressionLevel) Option {
	return func(r *Renderer) { r.png.CompressionLevel = level }
}

// New creates a new Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		png: &png.Encoder{
			CompressionLevel: png.DefaultCompression,
			BufferPool:       &bufferPool{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateCanvas creates a new drawing canvas.
func (r *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	dc := gg.NewContext(width, height)
	dc.SetColor(bg)
	dc.Clear()
	return &Canvas{dc: dc}
}

// EncodeImage encodes an image to the specified format. PNG and TIFF keep
// the sample depth of img, so an image.Gray16 stays 16-bit gray. JPEG is
// always 8-bit; quality outside 1-100 falls back to the jpeg default.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		if err := r.png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	case ports.FormatTIFF:
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, fmt.Errorf("encode TIFF: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage scales img to width x height. Gray images stay gray at their
// own depth, everything else becomes RGBA. Large reductions use bilinear
// sampling since Catmull-Rom costs far more per source pixel.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	rect := image.Rect(0, 0, width, height)

	var dst draw.Image
	switch img.(type) {
	case *image.Gray16:
		dst = image.NewGray16(rect)
	case *image.Gray:
		dst = image.NewGray(rect)
	default:
		dst = image.NewRGBA(rect)
	}

	var scaler draw.Scaler = draw.CatmullRom
	if src := img.Bounds(); src.Dx() >= 4*width && src.Dy() >= 4*height {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(dst, rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

// bufferPool shares PNG encoder buffers across the frames of one export.
type bufferPool struct {
	pool sync.Pool
}

func (p *bufferPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *bufferPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)

// Canvas implements ports.Canvas using gg.Context.
type Canvas struct {
	dc       *gg.Context
	fontPath string
	fontSize float64
}

// DrawImage draws an image at the specified position.
func (c *Canvas) DrawImage(img image.Image, x, y int) {
	c.dc.DrawImage(img, x, y)
}

// DrawRect draws a filled rectangle.
func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// DrawRectStroke draws a rectangle outline.
func (c *Canvas) DrawRectStroke(x, y, w, h int, col color.Color, strokeWidth float64) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(strokeWidth)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Stroke()
}

// DrawText draws text vertically centered on y. A font that fails to load
// leaves the previous face in place.
func (c *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	c.dc.SetColor(style.Color)

	if style.FontPath != "" && (style.FontPath != c.fontPath || style.FontSize != c.fontSize) {
		if err := c.dc.LoadFontFace(style.FontPath, style.FontSize); err == nil {
			c.fontPath, c.fontSize = style.FontPath, style.FontSize
		}
	}

	ax := 0.0
	switch style.Align {
	case ports.AlignCenter:
		ax = 0.5
	case ports.AlignRight:
		ax = 1.0
	}

	c.dc.DrawStringAnchored(text, float64(x), float64(y), ax, 0.5)
}

// ToImage returns the canvas as an image.Image.
func (c *Canvas) ToImage() image.Image {
	return c.dc.Image()
}

// Ensure Canvas implements ports.Canvas
var _ ports.Canvas = (*Canvas)(nil)
