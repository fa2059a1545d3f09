package codecdetect

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerFromHeader(t *testing.T) {
	ts := make([]byte, 2*tsPacketSize+1)
	ts[0], ts[tsPacketSize], ts[2*tsPacketSize] = tsSyncByte, tsSyncByte, tsSyncByte

	notTS := make([]byte, 2*tsPacketSize)
	notTS[0] = tsSyncByte

	tests := []struct {
		name string
		head []byte
		want Container
	}{
		{"ftyp", []byte("\x00\x00\x00\x18ftypisom"), ContainerMP4},
		{"styp", []byte("\x00\x00\x00\x18stypmsdh"), ContainerMP4},
		{"mpegts", ts, ContainerMPEGTS},
		{"short mpegts", []byte{tsSyncByte, 0x40, 0x00}, ContainerMPEGTS},
		{"lone sync byte", notTS, ContainerUnknown},
		{"empty", nil, ContainerUnknown},
		{"text", []byte("hello world"), ContainerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainerFromHeader(tt.head))
		})
	}
}

func TestDetectContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("\x00\x00\x00\x18ftypisom\x00\x00\x00\x00"), 0644))

	c, err := DetectContainer(path)
	require.NoError(t, err)
	assert.Equal(t, ContainerMP4, c)

	_, err = DetectContainer(filepath.Join(t.TempDir(), "missing.ts"))
	assert.Error(t, err)
}

func TestDetectFromReader_Invalid(t *testing.T) {
	_, err := DetectFromReader(bytes.NewReader([]byte("not an mp4")))
	assert.Error(t, err)
}

func writeInit(t *testing.T, sampleEntry string) string {
	t.Helper()
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(90000, "video", "und")
	init.Moov.Trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.NewVisualSampleEntryBox(sampleEntry))

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))
	path := filepath.Join(t.TempDir(), "init.mp4")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestDetectFromFile(t *testing.T) {
	for entry, want := range map[string]Codec{
		"avc1": CodecH264,
		"hvc1": CodecHEVC,
		"av01": CodecAV1,
		"vp09": CodecUnknown,
	} {
		t.Run(entry, func(t *testing.T) {
			codec, err := DetectFromFile(writeInit(t, entry))
			require.NoError(t, err)
			assert.Equal(t, want, codec)
		})
	}

	_, err := DetectFromFile(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)

	audio := mp4.CreateEmptyInit()
	audio.AddEmptyTrack(48000, "audio", "und")
	var buf bytes.Buffer
	require.NoError(t, audio.Encode(&buf))
	_, err = DetectFromReader(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}
