// Package pixconv converts decoded frames between the pixel layouts used by
// the extractor (BGR24) and the grabber (8/16-bit grayscale).
package pixconv

import (
	"errors"
	"fmt"
	"image"

	"github.com/user/framegrab/pkg/ports"
)

// BytesPerPixelBGR is the size of one BGR24 pixel.
const BytesPerPixelBGR = 3

// ScaleFactor16 maps [0,255] onto [0,65535].
const ScaleFactor16 = 257

var (
	// ErrUnsupportedFormat is returned for pixel formats without a converter.
	ErrUnsupportedFormat = errors.New("pixconv: unsupported pixel format")

	// ErrShortPlane is returned when a plane is smaller than its stride and size imply.
	ErrShortPlane = errors.New("pixconv: plane too short")
)

// BGRSize returns the tightly packed BGR24 size of a width x height frame.
func BGRSize(width, height int) int {
	return width * height * BytesPerPixelBGR
}

// ToBGR24 converts a raw frame to tightly packed BGR24.
func ToBGR24(f ports.RawFrame) ([]byte, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("pixconv: invalid frame size %dx%d", f.Width, f.Height)
	}

	switch f.Format {
	case ports.PixelFormatYUV420P:
		return yuv420pToBGR(f)
	case ports.PixelFormatNV12:
		return nv12ToBGR(f)
	case ports.PixelFormatGray:
		return grayToBGR(f)
	case ports.PixelFormatBGR24:
		return packedToBGR(f, 3, 0, 1, 2)
	case ports.PixelFormatRGB24:
		return packedToBGR(f, 3, 2, 1, 0)
	case ports.PixelFormatRGBA:
		return packedToBGR(f, 4, 2, 1, 0)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
	}
}

func checkPlane(f ports.RawFrame, plane, rows, rowBytes int) error {
	if len(f.Planes) <= plane || len(f.Strides) <= plane {
		return fmt.Errorf("%w: plane %d missing", ErrShortPlane, plane)
	}
	stride := f.Strides[plane]
	if stride < rowBytes {
		return fmt.Errorf("%w: plane %d stride %d < %d", ErrShortPlane, plane, stride, rowBytes)
	}
	if need := (rows-1)*stride + rowBytes; len(f.Planes[plane]) < need {
		return fmt.Errorf("%w: plane %d has %d bytes, need %d", ErrShortPlane, plane, len(f.Planes[plane]), need)
	}
	return nil
}

func yuv420pToBGR(f ports.RawFrame) ([]byte, error) {
	cw, ch := (f.Width+1)/2, (f.Height+1)/2
	if err := checkPlane(f, 0, f.Height, f.Width); err != nil {
		return nil, err
	}
	if err := checkPlane(f, 1, ch, cw); err != nil {
		return nil, err
	}
	if err := checkPlane(f, 2, ch, cw); err != nil {
		return nil, err
	}

	yp, up, vp := f.Planes[0], f.Planes[1], f.Planes[2]
	ys, us, vs := f.Strides[0], f.Strides[1], f.Strides[2]

	out := make([]byte, BGRSize(f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := yuvToRGB(
				int(yp[y*ys+x]),
				int(up[(y/2)*us+x/2]),
				int(vp[(y/2)*vs+x/2]),
			)
			i := (y*f.Width + x) * BytesPerPixelBGR
			out[i], out[i+1], out[i+2] = b, g, r
		}
	}
	return out, nil
}

func nv12ToBGR(f ports.RawFrame) ([]byte, error) {
	cw, ch := (f.Width+1)/2, (f.Height+1)/2
	if err := checkPlane(f, 0, f.Height, f.Width); err != nil {
		return nil, err
	}
	if err := checkPlane(f, 1, ch, cw*2); err != nil {
		return nil, err
	}

	yp, uv := f.Planes[0], f.Planes[1]
	ys, uvs := f.Strides[0], f.Strides[1]

	out := make([]byte, BGRSize(f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			ci := (y/2)*uvs + (x/2)*2
			r, g, b := yuvToRGB(int(yp[y*ys+x]), int(uv[ci]), int(uv[ci+1]))
			i := (y*f.Width + x) * BytesPerPixelBGR
			out[i], out[i+1], out[i+2] = b, g, r
		}
	}
	return out, nil
}

func grayToBGR(f ports.RawFrame) ([]byte, error) {
	if err := checkPlane(f, 0, f.Height, f.Width); err != nil {
		return nil, err
	}
	out := make([]byte, BGRSize(f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		row := f.Planes[0][y*f.Strides[0]:]
		for x := 0; x < f.Width; x++ {
			i := (y*f.Width + x) * BytesPerPixelBGR
			out[i], out[i+1], out[i+2] = row[x], row[x], row[x]
		}
	}
	return out, nil
}

// packedToBGR copies a single-plane packed format. bi/gi/ri are the byte
// offsets of blue, green and red inside one pixel of size bpp.
func packedToBGR(f ports.RawFrame, bpp, bi, gi, ri int) ([]byte, error) {
	if err := checkPlane(f, 0, f.Height, f.Width*bpp); err != nil {
		return nil, err
	}
	out := make([]byte, BGRSize(f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		row := f.Planes[0][y*f.Strides[0]:]
		for x := 0; x < f.Width; x++ {
			s := x * bpp
			i := (y*f.Width + x) * BytesPerPixelBGR
			out[i], out[i+1], out[i+2] = row[s+bi], row[s+gi], row[s+ri]
		}
	}
	return out, nil
}

// yuvToRGB converts one limited-range BT.601 sample with integer math.
func yuvToRGB(yv, u, v int) (r, g, b uint8) {
	c := yv - 16
	d := u - 128
	e := v - 128

	r = clamp((298*c + 409*e + 128) >> 8)
	g = clamp((298*c - 100*d - 208*e + 128) >> 8)
	b = clamp((298*c + 516*d + 128) >> 8)
	return r, g, b
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// BGRToGray reduces a BGR24 buffer to one channel using the fixed-point
// BT.601 luma weights (14-bit coefficients, rounded).
func BGRToGray(bgr []byte, width, height int) ([]byte, error) {
	if len(bgr) != BGRSize(width, height) {
		return nil, fmt.Errorf("pixconv: bgr buffer has %d bytes, want %d", len(bgr), BGRSize(width, height))
	}
	gray := make([]byte, width*height)
	for i := range gray {
		b, g, r := int(bgr[i*3]), int(bgr[i*3+1]), int(bgr[i*3+2])
		gray[i] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
	}
	return gray, nil
}

// GrayTo16 widens 8-bit samples to 16 bits. With scale set every sample is
// multiplied by ScaleFactor16, otherwise the value is kept as is.
func GrayTo16(gray []byte, scale bool) []uint16 {
	out := make([]uint16, len(gray))
	for i, v := range gray {
		if scale {
			out[i] = uint16(v) * ScaleFactor16
		} else {
			out[i] = uint16(v)
		}
	}
	return out
}

// BGRImage wraps a BGR24 buffer into an RGBA image for encoding or drawing.
func BGRImage(bgr []byte, width, height int) (*image.RGBA, error) {
	if len(bgr) != BGRSize(width, height) {
		return nil, fmt.Errorf("pixconv: bgr buffer has %d bytes, want %d", len(bgr), BGRSize(width, height))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s := (y*width + x) * BytesPerPixelBGR
			d := y*img.Stride + x*4
			img.Pix[d] = bgr[s+2]
			img.Pix[d+1] = bgr[s+1]
			img.Pix[d+2] = bgr[s]
			img.Pix[d+3] = 255
		}
	}
	return img, nil
}

// Gray16Image wraps 16-bit samples into an image.Gray16.
func Gray16Image(samples []uint16, width, height int) (*image.Gray16, error) {
	if len(samples) != width*height {
		return nil, fmt.Errorf("pixconv: got %d samples, want %d", len(samples), width*height)
	}
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for i, v := range samples {
		img.Pix[i*2] = uint8(v >> 8)
		img.Pix[i*2+1] = uint8(v)
	}
	return img, nil
}
