package export

import (
	"context"
	"image"

	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/grabber"
	"github.com/user/framegrab/pkg/pixconv"
	"github.com/user/framegrab/pkg/ports"
)

// FrameSource yields frames as images. A nil image with a nil error means
// the frame is not available.
type FrameSource interface {
	FrameImage(n int) (image.Image, error)
}

// ColorFrames serves full color frames from an extractor.
func ColorFrames(x *extractor.Extractor) FrameSource {
	return colorSource{x: x}
}

type colorSource struct {
	x *extractor.Extractor
}

func (s colorSource) FrameImage(n int) (image.Image, error) {
	frame, err := s.x.GetFrame(n)
	if err != nil || frame.Empty() {
		return nil, err
	}
	return pixconv.BGRImage(frame.Data, frame.Size.Width, frame.Size.Height)
}

// GrayFrames serves 16-bit grayscale frames from an initialized grabber.
func GrayFrames(g *grabber.Grabber) FrameSource {
	return graySource{g: g}
}

type graySource struct {
	g *grabber.Grabber
}

func (s graySource) FrameImage(n int) (image.Image, error) {
	img, err := s.g.Image(n)
	if err != nil || img == nil {
		return nil, err
	}
	return img, nil
}

// Result reports what WriteFrames did.
type Result struct {
	Written []string
	// Skipped lists requested frames that came back empty.
	Skipped []int
}

// WriteFrames writes every requested frame of src into dir as
// frame_NNNNNN.ext. Empty frames are skipped and reported, errors and
// cancellation abort.
func (w *Writer) WriteFrames(ctx context.Context, src FrameSource, frames []int, dir, ext string, log ports.Logger) (Result, error) {
	log = log.WithComponent("export")

	var res Result
	if err := w.fs.MkdirAll(dir); err != nil {
		return res, err
	}

	for _, n := range frames {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		img, err := src.FrameImage(n)
		if err != nil {
			return res, err
		}
		if img == nil {
			log.Warn("Frame %d is empty, skipped", n)
			res.Skipped = append(res.Skipped, n)
			continue
		}

		path := FramePath(dir, n, ext)
		if err := w.WriteImage(path, img); err != nil {
			return res, err
		}
		log.Debug("Wrote %s", path)
		res.Written = append(res.Written, path)
	}

	log.Info("Wrote %d frames to %s", len(res.Written), dir)
	return res, nil
}
