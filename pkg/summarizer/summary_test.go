package summarizer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/mocks"
)

func sampleSummary() *Summary {
	s := NewBuilder().
		WithSource(SourceInfo{Path: "clip.mp4", FileSize: 3 * 1024 * 1024, Container: "mp4", Backend: "ffmpeg"}).
		WithStream(StreamInfo{Codec: "h264", Width: 1920, Height: 1080, FrameRate: 30, DurationSec: 10, TotalFrames: 300, PacketFrames: 300}).
		WithIndex([]int{0, 30, 60}, 10).
		WithCamera(CameraInfo{Model: "GF77", Type: "uncooled"}).
		WithSettings(Settings{FrameCountSource: "metadata", SeekRetries: 3}).
		Build()
	s.GeneratedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return s
}

func TestBuilder_WithExtractor(t *testing.T) {
	spec := mocks.StreamSpec{Frames: 38, AdvertisedFrames: 40, KeyframeEvery: 10}
	opts := extractor.DefaultOptions()
	opts.MinKeyframeInterval = 10
	x, err := extractor.Open(&mocks.Capability{Spec: spec}, "clip.ts", opts)
	require.NoError(t, err)
	defer x.Close()

	s := NewBuilder().WithExtractor(x, opts.MinKeyframeInterval).Build()

	assert.Equal(t, x.TotalFrames(), s.Stream.TotalFrames)
	assert.Equal(t, x.PacketFrameCount(), s.Stream.PacketFrames)
	assert.Equal(t, x.KeyframePositions(), s.Index.Keyframes)
	assert.Equal(t, 10, s.Index.MinInterval)
	assert.False(t, s.GeneratedAt.IsZero())
}

func TestMarkdownFormatter_Format(t *testing.T) {
	out := NewMarkdownFormatter(WithVersion("1.2.3")).Format(sampleSummary())

	for _, want := range []string{
		"# Stream Summary",
		"Generated: 2024-05-01 12:00:00",
		"| File | clip.mp4 |",
		"| File Size | 3.00 MB |",
		"| Resolution | 1920x1080 |",
		"| Frame Rate | 30.000 fps |",
		"| Positions | 0, 30, 60 |",
		"## Camera",
		"| Model | GF77 |",
		"| Type | uncooled |",
		"| 16-bit Scaling | No |",
		"Generated by framegrab 1.2.3",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "differs from the packet count")
}

func TestMarkdownFormatter_Details(t *testing.T) {
	s := sampleSummary()
	s.Stream.Width, s.Stream.Height = 0, 0
	s.Stream.PacketFrames = 298
	positions := make([]int, 25)
	for i := range positions {
		positions[i] = i * 10
	}
	s.Index.Keyframes = positions
	s.Camera = CameraInfo{}

	out := NewMarkdownFormatter().Format(s)
	assert.Contains(t, out, "| Resolution | N/A |")
	assert.Contains(t, out, "| Model | N/A |")
	assert.Contains(t, out, "> Metadata frame count differs from the packet count.")
	assert.Contains(t, out, "190 (+5)")
	assert.Contains(t, out, "Generated by framegrab dev")
}

func TestMarkdownFormatter_Translator(t *testing.T) {
	upper := WithTranslator(strings.ToUpper)
	out := NewMarkdownFormatter(upper).Format(sampleSummary())
	assert.Contains(t, out, "# STREAM SUMMARY")
	assert.Contains(t, out, "| CODEC | h264 |")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(*Summary) string { return "report" }), fs)

	require.NoError(t, w.Write("out/summary.md", sampleSummary()))
	data, ok := fs.GetFile("out/summary.md")
	require.True(t, ok)
	assert.Equal(t, "report", string(data))

	fs.WriteFileFunc = func(string, []byte) error { return errors.New("read-only") }
	assert.ErrorContains(t, w.Write("out/summary.md", sampleSummary()), "read-only")
}
