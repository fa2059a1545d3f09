package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ideamans/go-l10n"

	"github.com/user/framegrab/pkg/adapters/ggrenderer"
	"github.com/user/framegrab/pkg/adapters/osfilesystem"
	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/export"
	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/grabber"
	"github.com/user/framegrab/pkg/summarizer"
)

var errNoSelection = errors.New("no frames selected: use --frames, --keyframes or --every")

// FrameSelection picks the frames a command works on.
type FrameSelection struct {
	Frames    []int `short:"f" sep:"," help:"Frame numbers (comma separated)."`
	Keyframes bool  `short:"k" help:"Select every indexed keyframe."`
	Every     int   `help:"Select every Nth frame."`
}

func (s FrameSelection) empty() bool {
	return len(s.Frames) == 0 && !s.Keyframes && s.Every <= 0
}

// resolve merges the selection into a sorted list without duplicates.
func (s FrameSelection) resolve(total int, keyframes []int) []int {
	seen := make(map[int]bool)
	var out []int
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	for _, n := range s.Frames {
		add(n)
	}
	if s.Keyframes {
		for _, n := range keyframes {
			add(n)
		}
	}
	if s.Every > 0 {
		for n := 0; n < total; n += s.Every {
			add(n)
		}
	}

	sort.Ints(out)
	return out
}

// InfoCmd prints the stream report.
type InfoCmd struct {
	Input  string `arg:"" help:"Video file (MP4 or MPEG-TS)."`
	Output string `short:"o" help:"Write the Markdown report to this file instead of stdout."`
}

// Run executes the info command.
func (cmd *InfoCmd) Run(g *Globals) error {
	a, err := g.setup()
	if err != nil {
		return err
	}
	defer a.close()

	x, err := a.open(cmd.Input)
	if err != nil {
		return err
	}
	defer x.Close()

	// The decoded frame size is only known after one frame.
	if _, err := x.GetFrame(0); err != nil {
		a.log.Warn("Could not decode frame 0: %v", err)
	}

	var size int64
	if st, err := os.Stat(cmd.Input); err == nil {
		size = st.Size()
	}
	info := a.capability.Info()

	// Camera metadata needs no decoding, so the grabber stays uninitialized.
	cam := grabber.New(a.capability, cmd.Input)
	a.configureCamera(cam)

	summary := summarizer.NewBuilder().
		WithSource(summarizer.SourceInfo{
			Path:      cmd.Input,
			FileSize:  size,
			Container: string(info.Container),
			Backend:   string(info.Backend),
		}).
		WithExtractor(x, a.cfg.Extraction.MinKeyframeInterval).
		WithCamera(summarizer.CameraInfo{
			Model: cam.CameraModel(),
			Type:  string(cam.CameraType()),
		}).
		WithSettings(summarizer.Settings{
			FrameCountSource: a.cfg.Extraction.FrameCountSource,
			SeekRetries:      a.cfg.Extraction.SeekRetries,
			ConvertTo16Bit:   a.cfg.Grabber.ConvertTo16Bit,
		}).
		Build()

	formatter := summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)

	if cmd.Output == "" {
		fmt.Print(formatter.Format(summary))
		return nil
	}
	if err := summarizer.NewWriter(formatter, osfilesystem.New()).Write(cmd.Output, summary); err != nil {
		return err
	}
	a.log.Info("Report saved to %s", cmd.Output)
	return nil
}

// ExtractCmd writes frames as image files.
type ExtractCmd struct {
	Input string `arg:"" help:"Video file (MP4 or MPEG-TS)."`

	FrameSelection `embed:""`

	Output  string `short:"o" default:"frames" help:"Output directory."`
	Format  string `short:"F" default:"png" enum:"png,jpg,tiff" help:"Image format (png, jpg, tiff)."`
	Quality int    `short:"q" default:"90" help:"JPEG quality (1-100)."`
	Gray    bool   `short:"g" help:"Write 16-bit grayscale frames."`
}

// Run executes the extract command.
func (cmd *ExtractCmd) Run(g *Globals) error {
	if cmd.empty() {
		return errNoSelection
	}

	a, err := g.setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(a.log)
	defer cancel()

	writer := export.NewWriter(osfilesystem.New(), ggrenderer.New())
	writer.SetQuality(cmd.Quality)

	var (
		src       export.FrameSource
		total     int
		keyframes []int
	)
	if cmd.Gray {
		gr := grabber.New(a.capability, cmd.Input,
			grabber.WithExtractorOptions(a.extractorOptions()),
			grabber.WithConvertTo16Bit(a.cfg.Grabber.ConvertTo16Bit),
			grabber.WithLogger(a.log),
		)
		if err := gr.Initialize(); err != nil {
			return err
		}
		defer gr.Close()
		a.configureCamera(gr)
		a.log.Info("Camera %s (%s)", gr.CameraModel(), gr.CameraType())

		if total, err = gr.NumberOfFrames(); err != nil {
			return err
		}
		if keyframes, err = gr.KeyframePositions(); err != nil {
			return err
		}
		src = export.GrayFrames(gr)
	} else {
		x, err := a.open(cmd.Input)
		if err != nil {
			return err
		}
		defer x.Close()

		total = x.TotalFrames()
		keyframes = x.KeyframePositions()
		src = export.ColorFrames(x)
	}

	frames := cmd.resolve(total, keyframes)
	a.log.Info("Extracting %d frames from %s", len(frames), cmd.Input)

	res, err := writer.WriteFrames(ctx, src, frames, cmd.Output, cmd.Format, a.log)
	if err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		a.log.Warn("%d frames were empty and not written", len(res.Skipped))
	}
	return nil
}

// SheetCmd renders a contact sheet.
type SheetCmd struct {
	Input  string `arg:"" help:"Video file (MP4 or MPEG-TS)."`
	Output string `short:"o" required:"" help:"Output image path (.png, .jpg or .tiff)."`

	FrameSelection `embed:""`

	Columns    *int `short:"C" help:"Number of columns."`
	ThumbWidth *int `short:"w" help:"Thumbnail width in pixels."`
	Workers    *int `short:"j" help:"Number of decoding workers."`
	NoLabels   bool `help:"Do not print frame numbers under thumbnails."`
}

// Run executes the sheet command. Without a selection it shows every keyframe.
func (cmd *SheetCmd) Run(g *Globals) error {
	if _, err := export.FormatForPath(cmd.Output); err != nil {
		return err
	}

	a, err := g.setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(a.log)
	defer cancel()

	// A first extractor resolves the selection; the workers open their own.
	x, err := a.open(cmd.Input)
	if err != nil {
		return err
	}
	selection := cmd.FrameSelection
	if selection.empty() {
		selection.Keyframes = true
	}
	frames := selection.resolve(x.TotalFrames(), x.KeyframePositions())
	x.Close()

	path := cmd.Input
	open := func() (*extractor.Extractor, error) {
		return extractor.Open(a.capability, path, a.extractorOptions())
	}

	renderer := ggrenderer.New()
	img, err := export.NewSheet(renderer, a.log).Render(ctx, open, cmd.options(a.cfg.Sheet, frames))
	if err != nil {
		return err
	}

	if err := export.NewWriter(osfilesystem.New(), renderer).WriteImage(cmd.Output, img); err != nil {
		return err
	}
	a.log.Info("Contact sheet saved to %s", cmd.Output)
	return nil
}

func (cmd *SheetCmd) options(sc config.SheetConfig, frames []int) export.SheetOptions {
	opts := export.SheetOptions{
		Frames:      frames,
		Columns:     sc.Columns,
		ThumbWidth:  sc.ThumbWidth,
		Gap:         sc.Gap,
		Padding:     sc.Padding,
		Workers:     sc.Workers,
		Labels:      sc.Labels && !cmd.NoLabels,
		Background:  config.ParseColor(sc.Theme.BackgroundColor),
		TextColor:   config.ParseColor(sc.Theme.TextColor),
		BorderColor: config.ParseColor(sc.Theme.BorderColor),
	}
	if cmd.Columns != nil {
		opts.Columns = *cmd.Columns
	}
	if cmd.ThumbWidth != nil {
		opts.ThumbWidth = *cmd.ThumbWidth
	}
	if cmd.Workers != nil {
		opts.Workers = *cmd.Workers
	}
	return opts
}
