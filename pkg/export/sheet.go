package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync"

	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/pixconv"
	"github.com/user/framegrab/pkg/ports"
)

// ErrNoFrames is returned when a sheet is requested for an empty frame list.
var ErrNoFrames = errors.New("export: no frames for contact sheet")

// labelHeight is the strip below each thumbnail that holds its frame number.
const labelHeight = 18

// Opener opens a fresh extractor. Each sheet worker calls it once, since an
// extractor must not be shared between goroutines.
type Opener func() (*extractor.Extractor, error)

// SheetOptions configures contact sheet rendering.
type SheetOptions struct {
	// Frames lists the frame numbers to render, usually the keyframe positions.
	Frames []int

	Columns    int
	ThumbWidth int
	Gap        int
	Padding    int
	Workers    int
	Labels     bool

	Background  color.Color
	TextColor   color.Color
	BorderColor color.Color
}

// Sheet renders contact sheets.
type Sheet struct {
	renderer ports.Renderer
	logger   ports.Logger
}

// NewSheet creates a contact sheet renderer.
func NewSheet(renderer ports.Renderer, logger ports.Logger) *Sheet {
	return &Sheet{
		renderer: renderer,
		logger:   logger.WithComponent("sheet"),
	}
}

// thumb is one rendered cell; img is nil for an empty frame.
type thumb struct {
	index int
	frame int
	img   image.Image
}

// Render decodes opts.Frames with a pool of workers and lays the thumbnails
// out in a grid, in the order given.
func (s *Sheet) Render(ctx context.Context, open Opener, opts SheetOptions) (image.Image, error) {
	if len(opts.Frames) == 0 {
		return nil, ErrNoFrames
	}
	opts = sheetDefaults(opts)

	workers := opts.Workers
	if workers > len(opts.Frames) {
		workers = len(opts.Frames)
	}
	s.logger.Debug("Rendering %d thumbnails with %d workers", len(opts.Frames), workers)

	thumbs, err := s.decodeParallel(ctx, open, opts, workers)
	if err != nil {
		return nil, err
	}
	return s.compose(thumbs, opts), nil
}

func sheetDefaults(opts SheetOptions) SheetOptions {
	if opts.Columns <= 0 {
		opts.Columns = 4
	}
	if opts.ThumbWidth <= 0 {
		opts.ThumbWidth = 240
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}
	if opts.TextColor == nil {
		opts.TextColor = color.White
	}
	if opts.BorderColor == nil {
		opts.BorderColor = color.Gray{Y: 0x40}
	}
	return opts
}

func (s *Sheet) decodeParallel(ctx context.Context, open Opener, opts SheetOptions, workers int) ([]thumb, error) {
	n := len(opts.Frames)
	jobs := make(chan int, n)
	results := make(chan thumb, n)
	errChan := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go s.worker(ctx, &wg, open, opts, jobs, results, errChan)
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
		close(errChan)
	}()

	thumbs := make([]thumb, 0, n)
	for t := range results {
		thumbs = append(thumbs, t)
	}

	if err := <-errChan; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(thumbs, func(i, j int) bool {
		return thumbs[i].index < thumbs[j].index
	})
	return thumbs, nil
}

// worker owns one extractor for its whole life. Jobs arrive in ascending
// order, so consecutive frames often take the sequential path.
func (s *Sheet) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	open Opener,
	opts SheetOptions,
	jobs <-chan int,
	results chan<- thumb,
	errChan chan<- error,
) {
	defer wg.Done()

	x, err := open()
	if err != nil {
		select {
		case errChan <- fmt.Errorf("open extractor: %w", err):
		default:
		}
		return
	}
	defer x.Close()

	for idx := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frameNo := opts.Frames[idx]
		img, err := s.thumbnail(x, frameNo, opts.ThumbWidth)
		if err != nil {
			select {
			case errChan <- fmt.Errorf("thumbnail for frame %d: %w", frameNo, err):
			default:
			}
			return
		}
		results <- thumb{index: idx, frame: frameNo, img: img}
	}
}

func (s *Sheet) thumbnail(x *extractor.Extractor, n, width int) (image.Image, error) {
	frame, err := x.GetFrame(n)
	if err != nil {
		return nil, err
	}
	if frame.Empty() {
		s.logger.Warn("Frame %d is empty (%s), leaving its cell blank", n, frame.Reason)
		return nil, nil
	}

	img, err := pixconv.BGRImage(frame.Data, frame.Size.Width, frame.Size.Height)
	if err != nil {
		return nil, err
	}
	height := frame.Size.Height * width / frame.Size.Width
	if height < 1 {
		height = 1
	}
	return s.renderer.ResizeImage(img, width, height), nil
}

func (s *Sheet) compose(thumbs []thumb, opts SheetOptions) image.Image {
	cellHeight := 0
	for _, t := range thumbs {
		if t.img != nil && t.img.Bounds().Dy() > cellHeight {
			cellHeight = t.img.Bounds().Dy()
		}
	}
	if cellHeight == 0 {
		cellHeight = opts.ThumbWidth * 9 / 16
	}
	label := 0
	if opts.Labels {
		label = labelHeight
	}

	cols := opts.Columns
	if cols > len(thumbs) {
		cols = len(thumbs)
	}
	rows := (len(thumbs) + cols - 1) / cols

	width := 2*opts.Padding + cols*opts.ThumbWidth + (cols-1)*opts.Gap
	height := 2*opts.Padding + rows*(cellHeight+label) + (rows-1)*opts.Gap

	canvas := s.renderer.CreateCanvas(width, height, opts.Background)
	for i, t := range thumbs {
		x := opts.Padding + (i%cols)*(opts.ThumbWidth+opts.Gap)
		y := opts.Padding + (i/cols)*(cellHeight+label+opts.Gap)

		if t.img != nil {
			canvas.DrawImage(t.img, x, y)
		}
		canvas.DrawRectStroke(x, y, opts.ThumbWidth, cellHeight, opts.BorderColor, 1)

		if opts.Labels {
			text := fmt.Sprintf("#%d", t.frame)
			if t.img == nil {
				text += " (empty)"
			}
			canvas.DrawText(text, x+opts.ThumbWidth/2, y+cellHeight+label/2, ports.TextStyle{
				Color: opts.TextColor,
				Align: ports.AlignCenter,
			})
		}
	}

	s.logger.Info("Contact sheet %dx%d with %d thumbnails", width, height, len(thumbs))
	return canvas.ToImage()
}
