package mp4demux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/ports"
)

// Baseline profile SPS for 64x32 and a matching PPS.
var (
	testSPS = []byte{0x67, 0x42, 0x00, 0x1e, 0xda, 0x11, 0x64}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

const (
	testTimescale = 90000
	testFrameDur  = 3600 // 25 fps
)

// sampleNALU returns an AVCC sample holding one slice NAL unit whose last
// byte is the frame number.
func sampleNALU(frame int, sync bool) []byte {
	nalType := byte(0x41)
	if sync {
		nalType = 0x65
	}
	nalu := []byte{nalType, 0x88, 0x84, byte(frame)}
	out := make([]byte, 4, 4+len(nalu))
	binary.BigEndian.PutUint32(out, uint32(len(nalu)))
	return append(out, nalu...)
}

// writeFragmentedMP4 writes an H.264 fragmented MP4 with frames samples and
// a sync sample every keyEvery frames, split into fragments of fragSize.
func writeFragmentedMP4(t *testing.T, frames, keyEvery, fragSize int) string {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(testTimescale, "video", "und")
	require.NoError(t, init.Moov.Trak.SetAVCDescriptor("avc1", [][]byte{testSPS}, [][]byte{testPPS}, true))

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))

	for start := 0; start < frames; start += fragSize {
		seg := mp4.NewMediaSegment()
		frag, err := mp4.CreateFragment(uint32(start/fragSize+1), mp4.DefaultTrakID)
		require.NoError(t, err)
		seg.AddFragment(frag)

		for i := start; i < start+fragSize && i < frames; i++ {
			sync := i%keyEvery == 0
			flags := mp4.NonSyncSampleFlags
			if sync {
				flags = mp4.SyncSampleFlags
			}
			data := sampleNALU(i, sync)
			frag.AddFullSample(mp4.FullSample{
				Sample: mp4.Sample{
					Flags: flags,
					Dur:   testFrameDur,
					Size:  uint32(len(data)),
				},
				DecodeTime: uint64(i * testFrameDur),
				Data:       data,
			})
		}
		require.NoError(t, seg.Encode(&buf))
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestOpen_FragmentedStreamInfo(t *testing.T) {
	path := writeFragmentedMP4(t, 50, 10, 20)

	c, err := New(nil).Open(path)
	require.NoError(t, err)
	defer c.Close()

	info := c.VideoStream()
	assert.Equal(t, "h264", info.Codec)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 32, info.Height)
	assert.Equal(t, ports.Rational{Num: 1, Den: testTimescale}, info.TimeBase)
	assert.Equal(t, int64(50*testFrameDur), info.Duration)
	assert.Equal(t, ports.Rational{Num: 25, Den: 1}, info.RFrameRate)
	assert.Equal(t, ports.Rational{Num: 25, Den: 1}, info.AvgFrameRate)
	assert.InDelta(t, 2.0, info.DurationSeconds(), 1e-9)
}

func TestReadPacket_AllSamples(t *testing.T) {
	path := writeFragmentedMP4(t, 50, 10, 20)

	c, err := New(nil).Open(path)
	require.NoError(t, err)
	defer c.Close()

	var packets []ports.Packet
	for {
		pkt, err := c.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		packets = append(packets, pkt)
	}

	require.Len(t, packets, 50)
	for i, pkt := range packets {
		assert.Equal(t, int64(i*testFrameDur), pkt.DTS)
		assert.Equal(t, pkt.DTS, pkt.PTS)
		assert.Equal(t, i%10 == 0, pkt.Keyframe, "sample %d", i)
		assert.Equal(t, byte(i), pkt.Data[len(pkt.Data)-1])
		assert.True(t, bytes.HasPrefix(pkt.Data, startCode))
		if pkt.Keyframe {
			assert.True(t, bytes.HasPrefix(pkt.Data, append(append([]byte{}, startCode...), testSPS...)),
				"sync sample %d carries parameter sets", i)
		}
	}
}

func TestSeek(t *testing.T) {
	path := writeFragmentedMP4(t, 50, 10, 20)

	c, err := New(nil).Open(path)
	require.NoError(t, err)
	defer c.Close()

	tests := []struct {
		name      string
		ts        int64
		backward  bool
		wantFrame int
	}{
		{"backward between keyframes", 25 * testFrameDur, true, 20},
		{"backward on keyframe", 30 * testFrameDur, true, 30},
		{"backward before start", -5, true, 0},
		{"forward", 21 * testFrameDur, false, 30},
		{"forward on keyframe", 40 * testFrameDur, false, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Seek(tt.ts, tt.backward))
			pkt, err := c.ReadPacket()
			require.NoError(t, err)
			assert.Equal(t, int64(tt.wantFrame*testFrameDur), pkt.DTS)
		})
	}

	assert.Error(t, c.Seek(45*testFrameDur, false))
}

func TestOpen_Errors(t *testing.T) {
	_, err := New(nil).Open(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, ports.ErrNotFound)

	garbage := filepath.Join(t.TempDir(), "garbage.mp4")
	require.NoError(t, os.WriteFile(garbage, []byte("hello"), 0644))
	_, err = New(nil).Open(garbage)
	assert.ErrorIs(t, err, ports.ErrOpenFailed)

	audio := mp4.CreateEmptyInit()
	audio.AddEmptyTrack(48000, "audio", "und")
	var buf bytes.Buffer
	require.NoError(t, audio.Encode(&buf))
	_, err = open(bytes.NewReader(buf.Bytes()), nil)
	assert.ErrorIs(t, err, ports.ErrNoVideoStream)
}

func TestNewDecoder_NoFactory(t *testing.T) {
	path := writeFragmentedMP4(t, 10, 10, 10)
	c, err := New(nil).Open(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.NewDecoder()
	assert.ErrorIs(t, err, ports.ErrUnsupportedCodec)
}

func TestExtractor_OverMP4(t *testing.T) {
	path := writeFragmentedMP4(t, 100, 10, 25)
	capability := New(mocks.NewPayloadDecoder)

	x, err := extractor.Open(capability, path, extractor.DefaultOptions())
	require.NoError(t, err)
	defer x.Close()

	assert.Equal(t, 100, x.TotalFrames())
	assert.Equal(t, []int{0, 30, 60, 90}, x.KeyframePositions())
	assert.Equal(t, 25.0, x.FrameRate())

	for _, n := range []int{45, 46, 0, 99, 12} {
		frame, err := x.GetFrame(n)
		require.NoError(t, err)
		require.False(t, frame.Empty(), "frame %d", n)
		assert.Equal(t, extractor.FrameSize{Height: 32, Width: 64}, frame.Size)
		assert.Equal(t, byte(n), frame.Data[0], "frame %d", n)
	}
}
