package smartcapability

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/asticode/go-astits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framegrab/pkg/adapters/codecdetect"
	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/ports"
)

var (
	testSPS = []byte{0x67, 0x42, 0x00, 0x1e, 0xda, 0x11, 0x64}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

const (
	frames   = 20
	keyEvery = 5
	frameDur = 3600
)

func writeMP4(t *testing.T) string {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(90000, "video", "und")
	require.NoError(t, init.Moov.Trak.SetAVCDescriptor("avc1", [][]byte{testSPS}, [][]byte{testPPS}, true))

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))

	seg := mp4.NewMediaSegment()
	frag, err := mp4.CreateFragment(1, mp4.DefaultTrakID)
	require.NoError(t, err)
	seg.AddFragment(frag)
	for i := 0; i < frames; i++ {
		nalType, flags := byte(0x41), mp4.NonSyncSampleFlags
		if i%keyEvery == 0 {
			nalType, flags = 0x65, mp4.SyncSampleFlags
		}
		nalu := []byte{nalType, 0x88, 0x84, byte(i)}
		data := binary.BigEndian.AppendUint32(nil, uint32(len(nalu)))
		data = append(data, nalu...)
		frag.AddFullSample(mp4.FullSample{
			Sample:     mp4.Sample{Flags: flags, Dur: frameDur, Size: uint32(len(data))},
			DecodeTime: uint64(i * frameDur),
			Data:       data,
		})
	}
	require.NoError(t, seg.Encode(&buf))

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func writeTS(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	mx := astits.NewMuxer(context.Background(), &buf)
	require.NoError(t, mx.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: 0x100,
		StreamType:    astits.StreamTypeH264Video,
	}))
	mx.SetPCRPID(0x100)

	for i := 0; i < frames; i++ {
		var au []byte
		if i%keyEvery == 0 {
			for _, nalu := range [][]byte{testSPS, testPPS, {0x65, 0x88, 0x84, byte(i)}} {
				au = append(au, 0, 0, 0, 1)
				au = append(au, nalu...)
			}
		} else {
			au = []byte{0, 0, 0, 1, 0x41, 0x9a, 0x02, byte(i)}
		}
		_, err := mx.WriteData(&astits.MuxerData{
			PID: 0x100,
			PES: &astits.PESData{
				Header: &astits.PESHeader{
					StreamID: 0xe0,
					OptionalHeader: &astits.PESOptionalHeader{
						MarkerBits:      2,
						PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
						PTS:             &astits.ClockReference{Base: int64(i * frameDur)},
					},
				},
				Data: au,
			},
		})
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "clip.ts")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func newTestCapability() *Capability {
	return New(Options{DisableLibav: true, Decoders: mocks.NewPayloadDecoder})
}

func TestDetect(t *testing.T) {
	c := newTestCapability()

	info, err := c.Detect(writeMP4(t))
	require.NoError(t, err)
	assert.Equal(t, Info{Container: codecdetect.ContainerMP4, Backend: BackendFFmpeg, Codec: codecdetect.CodecH264}, info)

	info, err = c.Detect(writeTS(t))
	require.NoError(t, err)
	assert.Equal(t, Info{Container: codecdetect.ContainerMPEGTS, Backend: BackendFFmpeg}, info)
}

func TestDetect_Errors(t *testing.T) {
	c := newTestCapability()

	_, err := c.Detect(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, ports.ErrNotFound)

	garbage := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a video"), 0644))
	_, err = c.Detect(garbage)
	assert.ErrorIs(t, err, ports.ErrOpenFailed)
	assert.ErrorIs(t, err, ErrUnknownContainer)

	_, err = c.Open(garbage)
	assert.ErrorIs(t, err, ports.ErrOpenFailed)
}

func TestDetect_UnsupportedMP4Codec(t *testing.T) {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(90000, "video", "und")
	init.Moov.Trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.NewVisualSampleEntryBox("av01"))
	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))
	path := filepath.Join(t.TempDir(), "av1.mp4")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	c := newTestCapability()
	_, err := c.Detect(path)
	assert.ErrorIs(t, err, ports.ErrUnsupportedCodec)

	// The failure surfaces at open, before any index scan or decode.
	_, err = extractor.Open(c, path, extractor.DefaultOptions())
	assert.ErrorIs(t, err, ports.ErrUnsupportedCodec)
	assert.Equal(t, Info{}, c.Info())
}

func TestOpen_SelectsDemuxer(t *testing.T) {
	for _, tc := range []struct {
		name      string
		write     func(t *testing.T) string
		container codecdetect.Container
	}{
		{"mp4", writeMP4, codecdetect.ContainerMP4},
		{"mpegts", writeTS, codecdetect.ContainerMPEGTS},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCapability()
			path := tc.write(t)

			opts := extractor.DefaultOptions()
			opts.MinKeyframeInterval = keyEvery
			x, err := extractor.Open(c, path, opts)
			require.NoError(t, err)
			defer x.Close()

			assert.Equal(t, tc.container, c.Info().Container)
			assert.Equal(t, BackendFFmpeg, c.Info().Backend)
			assert.Equal(t, "h264", x.Stream().Codec)
			assert.Equal(t, []int{0, 5, 10, 15}, x.KeyframePositions())

			f, err := x.GetFrame(13)
			require.NoError(t, err)
			require.False(t, f.Empty())
			assert.Equal(t, byte(13), f.Data[0])
		})
	}
}

func TestAvailability(t *testing.T) {
	// Default builds do not carry the libav backend.
	assert.False(t, IsLibavAvailable())
	t.Logf("ffmpeg available: %v", IsFFmpegAvailable())
}
