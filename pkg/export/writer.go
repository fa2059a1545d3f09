// Package export writes extracted frames to image files and renders
// keyframe contact sheets.
package export

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/user/framegrab/pkg/ports"
)

// ErrUnsupportedFormat is returned for output paths without a known image extension.
var ErrUnsupportedFormat = errors.New("export: unsupported image format")

// DefaultJPEGQuality is used for .jpg output.
const DefaultJPEGQuality = 90

// FormatForPath picks the image format from the file extension.
func FormatForPath(path string) (ports.ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return ports.FormatPNG, nil
	case ".jpg", ".jpeg":
		return ports.FormatJPEG, nil
	case ".tif", ".tiff":
		return ports.FormatTIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// FramePath returns the conventional file name for frame n inside dir.
func FramePath(dir string, n int, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(dir, fmt.Sprintf("frame_%06d%s", n, ext))
}

// Writer encodes images and stores them through a ports.FileSystem.
type Writer struct {
	fs       ports.FileSystem
	renderer ports.Renderer
	quality  int
}

// NewWriter creates a Writer.
func NewWriter(fs ports.FileSystem, renderer ports.Renderer) *Writer {
	return &Writer{fs: fs, renderer: renderer, quality: DefaultJPEGQuality}
}

// SetQuality sets the JPEG quality. Values outside 1-100 keep the default.
func (w *Writer) SetQuality(q int) {
	if q >= 1 && q <= 100 {
		w.quality = q
	}
}

// WriteImage encodes img in the format implied by path and writes it.
func (w *Writer) WriteImage(path string, img image.Image) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := w.renderer.EncodeImage(img, format, w.quality)
	if err != nil {
		return fmt.Errorf("export: encode %s: %w", path, err)
	}
	if err := w.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
