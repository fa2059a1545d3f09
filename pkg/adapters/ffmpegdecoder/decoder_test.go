package ffmpegdecoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framegrab/pkg/adapters/tsdemux"
	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/ports"
)

func ppm(width, height int, fill byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "P6\n%d %d\n255\n", width, height)
	b.Write(bytes.Repeat([]byte{fill}, width*height*3))
	return b.Bytes()
}

func TestPPMReader_Stream(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(ppm(2, 1, 10))
	stream.WriteString("P6 # comment\n3 2 255\n")
	stream.Write(bytes.Repeat([]byte{20}, 18))

	r := newPPMReader(&stream)

	f, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 1, f.Height)
	assert.Equal(t, ports.PixelFormatRGB24, f.Format)
	assert.Equal(t, []int{6}, f.Strides)
	assert.Equal(t, bytes.Repeat([]byte{10}, 6), f.Planes[0])

	f, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Len(t, f.Planes[0], 18)

	_, err = r.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPPMReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"bad magic", []byte("P5\n2 2\n255\n....")},
		{"bad width", []byte("P6\nx 2\n255\n")},
		{"wide samples", []byte("P6\n1 1\n65535\n")},
		{"truncated header", []byte("P6\n2")},
		{"truncated pixels", append([]byte("P6\n2 2\n255\n"), 1, 2, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPPMReader(bytes.NewReader(tt.input)).next()
			require.Error(t, err)
			assert.NotErrorIs(t, err, io.EOF)
		})
	}
}

func TestNew_UnsupportedCodec(t *testing.T) {
	_, err := NewFactory(Options{FFmpegPath: "/bin/true"})(ports.StreamInfo{Codec: "av1"})
	assert.ErrorIs(t, err, ports.ErrUnsupportedCodec)

	assert.True(t, Supports("h264"))
	assert.True(t, Supports("hevc"))
	assert.False(t, Supports("av1"))
	assert.False(t, Supports("unknown"))
}

func TestSetFFmpegPath_Missing(t *testing.T) {
	SetFFmpegPath(filepath.Join(t.TempDir(), "no-ffmpeg"))
	defer SetFFmpegPath("")

	_, err := FindFFmpeg()
	assert.ErrorIs(t, err, ErrFFmpegNotFound)
	assert.False(t, IsAvailable())

	_, err = New(ports.StreamInfo{Codec: "h264"})
	assert.ErrorIs(t, err, ErrFFmpegNotFound)
}

func TestDecoder_IdleBehaviour(t *testing.T) {
	d, err := NewFactory(Options{FFmpegPath: "/bin/true"})(ports.StreamInfo{Codec: "h264"})
	require.NoError(t, err)

	_, err = d.ReceiveFrame()
	assert.ErrorIs(t, err, ports.ErrNeedMoreInput)

	require.NoError(t, d.Drain())
	_, err = d.ReceiveFrame()
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, d.SendPacket(ports.Packet{Data: []byte{0}}), ErrDrained)

	d.Flush()
	_, err = d.ReceiveFrame()
	assert.ErrorIs(t, err, ports.ErrNeedMoreInput)

	require.NoError(t, d.Close())
	_, err = d.ReceiveFrame()
	assert.ErrorIs(t, err, ErrClosed)
}

// encodeTestTS renders a small H.264 transport stream with ffmpeg's test
// source, or skips when ffmpeg or libx264 is missing.
func encodeTestTS(t *testing.T, frames, gop int) string {
	t.Helper()

	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		t.Skip("ffmpeg not available")
	}

	out := filepath.Join(t.TempDir(), "testsrc.ts")
	cmd := exec.Command(ffmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=25",
		"-frames:v", fmt.Sprint(frames),
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-g", fmt.Sprint(gop), "-keyint_min", fmt.Sprint(gop), "-sc_threshold", "0",
		"-bf", "0",
		"-f", "mpegts", out,
	)
	if msg, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot encode test stream: %v: %s", err, msg)
	}
	if _, err := os.Stat(out); err != nil {
		t.Skip("test stream not written")
	}
	return out
}

func TestExtractor_WithFFmpeg(t *testing.T) {
	path := encodeTestTS(t, 40, 10)
	capability := tsdemux.New(NewFactory(Options{LagWait: 5 * time.Second}))

	opts := extractor.DefaultOptions()
	opts.MinKeyframeInterval = 10

	seq, err := extractor.Open(capability, path, opts)
	require.NoError(t, err)
	defer seq.Close()

	assert.Equal(t, []int{0, 10, 20, 30}, seq.KeyframePositions())

	var reference [][]byte
	for n := 0; n < 40; n++ {
		f, err := seq.GetFrame(n)
		require.NoError(t, err)
		require.False(t, f.Empty(), "frame %d: %s", n, f.Reason)
		assert.Equal(t, extractor.FrameSize{Height: 48, Width: 64}, f.Size)
		reference = append(reference, f.Data)
	}

	random, err := extractor.Open(capability, path, opts)
	require.NoError(t, err)
	defer random.Close()

	for _, n := range []int{25, 3, 39, 0, 17, 18} {
		f, err := random.GetFrame(n)
		require.NoError(t, err)
		require.False(t, f.Empty(), "frame %d: %s", n, f.Reason)
		assert.Equal(t, reference[n], f.Data, "frame %d", n)
	}
}
