// Package codecdetect identifies the container format of a video file and,
// for MP4, the codec of its first video track.
package codecdetect

import (
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

// Container represents a container format.
type Container string

const (
	ContainerMP4     Container = "mp4"
	ContainerMPEGTS  Container = "mpegts"
	ContainerUnknown Container = "unknown"
)

// tsPacketSize is the size of one MPEG-TS packet; every packet starts with tsSyncByte.
const (
	tsPacketSize = 188
	tsSyncByte   = 0x47
)

// DetectContainer identifies the container of the file at path from its
// leading bytes.
func DetectContainer(path string) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContainerUnknown, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 2*tsPacketSize+1)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return ContainerUnknown, fmt.Errorf("read header: %w", err)
	}
	return ContainerFromHeader(head[:n]), nil
}

// ContainerFromHeader identifies a container from the first bytes of a file.
func ContainerFromHeader(head []byte) Container {
	if len(head) >= 8 {
		switch string(head[4:8]) {
		case "ftyp", "moov", "styp", "moof", "mdat", "free":
			return ContainerMP4
		}
	}
	if len(head) > 0 && head[0] == tsSyncByte {
		// A single sync byte is weak evidence; require the next packet too
		// when the header is long enough.
		if len(head) <= tsPacketSize || head[tsPacketSize] == tsSyncByte {
			return ContainerMPEGTS
		}
	}
	return ContainerUnknown
}

// DetectFromFile detects the video codec used in an MP4 file.
func DetectFromFile(path string) (Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return CodecUnknown, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return DetectFromReader(f)
}

// DetectFromReader detects the video codec from an io.ReadSeeker. Sample
// data is not read.
func DetectFromReader(reader io.ReadSeeker) (Codec, error) {
	mp4File, err := mp4.DecodeFile(reader, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return CodecUnknown, fmt.Errorf("decode mp4: %w", err)
	}

	// Reset reader position for subsequent reads
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, fmt.Errorf("seek: %w", err)
	}

	return DetectFromMP4(mp4File)
}

// DetectFromMP4 detects the codec of the first video track of a parsed file.
func DetectFromMP4(mp4File *mp4.File) (Codec, error) {
	for _, moov := range []*mp4.MoovBox{mp4File.Moov, initMoov(mp4File)} {
		if moov == nil {
			continue
		}
		for _, trak := range moov.Traks {
			if !IsVideoTrack(trak) {
				continue
			}
			return CodecFromTrack(trak), nil
		}
	}
	return CodecUnknown, fmt.Errorf("no video track found")
}

func initMoov(mp4File *mp4.File) *mp4.MoovBox {
	if mp4File.Init == nil {
		return nil
	}
	return mp4File.Init.Moov
}

// IsVideoTrack reports whether trak is a video track with a sample table.
func IsVideoTrack(trak *mp4.TrakBox) bool {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
		return false
	}
	if trak.Mdia.Hdlr.HandlerType != "vide" {
		return false
	}
	return trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsd != nil
}

// CodecFromTrack returns the codec named by the sample entry of a video track.
func CodecFromTrack(trak *mp4.TrakBox) Codec {
	if !IsVideoTrack(trak) {
		return CodecUnknown
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch child.Type() {
		case "avc1", "avc3":
			return CodecH264
		case "hvc1", "hev1":
			return CodecHEVC
		case "av01":
			return CodecAV1
		}
	}
	return CodecUnknown
}
