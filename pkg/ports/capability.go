package ports

import (
	"errors"
	"math"
)

// NoPTS marks a packet that carries no presentation timestamp.
const NoPTS int64 = math.MinInt64

var (
	// ErrNotFound is returned when the container file does not exist.
	ErrNotFound = errors.New("capability: file not found")

	// ErrOpenFailed is returned when the container cannot be opened or parsed.
	ErrOpenFailed = errors.New("capability: open failed")

	// ErrNoVideoStream is returned when the container has no video stream.
	ErrNoVideoStream = errors.New("capability: no video stream")

	// ErrNeedMoreInput is returned by ReceiveFrame when the decoder has no
	// frame buffered and wants another packet.
	ErrNeedMoreInput = errors.New("capability: decoder needs more input")

	// ErrUnsupportedCodec is returned when no decoder handles the stream codec.
	ErrUnsupportedCodec = errors.New("capability: unsupported codec")
)

// Rational is a fraction such as a time base or a frame rate.
type Rational struct {
	Num int
	Den int
}

// Float64 returns the value of r, or 0 when the denominator is 0.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// StreamInfo describes the selected video stream of a container.
type StreamInfo struct {
	Index  int
	Codec  string
	Width  int
	Height int

	// Duration is expressed in TimeBase units.
	Duration int64
	TimeBase Rational

	// AvgFrameRate is the average rate over the stream, RFrameRate the
	// base rate the timestamps are built on. They differ for VFR content.
	AvgFrameRate Rational
	RFrameRate   Rational
}

// DurationSeconds returns the stream duration in seconds.
func (s StreamInfo) DurationSeconds() float64 {
	if s.TimeBase.Den == 0 {
		return 0
	}
	return float64(s.Duration) * float64(s.TimeBase.Num) / float64(s.TimeBase.Den)
}

// Packet is one compressed unit read from the container.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Keyframe    bool
	// Pos is the byte position in the container, -1 when unknown.
	Pos  int64
	Data []byte
}

// HasPTS reports whether the packet carries a valid presentation timestamp.
func (p Packet) HasPTS() bool {
	return p.PTS != NoPTS
}

// PixelFormat names the memory layout of a raw frame.
type PixelFormat string

const (
	PixelFormatYUV420P PixelFormat = "yuv420p"
	PixelFormatNV12    PixelFormat = "nv12"
	PixelFormatGray    PixelFormat = "gray"
	PixelFormatRGB24   PixelFormat = "rgb24"
	PixelFormatBGR24   PixelFormat = "bgr24"
	PixelFormatRGBA    PixelFormat = "rgba"
)

// RawFrame is a decoded frame in the decoder's native layout.
type RawFrame struct {
	Width   int
	Height  int
	Format  PixelFormat
	Planes  [][]byte
	Strides []int
	PTS     int64

	// Handle is owned by the capability that produced the frame (for example
	// a native frame). It is only valid until the next ReceiveFrame call.
	Handle any
}

// DecodeCapability opens containers. It is the boundary to the demux and
// decode primitives; the extractor only orchestrates calls into it.
type DecodeCapability interface {
	// Open opens the container at path and selects its first video stream.
	Open(path string) (Container, error)
}

// DecoderFactory creates a decoder for a stream. Demuxers that do not decode
// themselves delegate NewDecoder to one.
type DecoderFactory func(stream StreamInfo) (Decoder, error)

// Container is one open container with one selected video stream.
type Container interface {
	// VideoStream returns metadata for the selected video stream.
	VideoStream() StreamInfo

	// Seek positions the demuxer near timestamp (in stream time base).
	// With backward set, it lands on the closest keyframe at or before it.
	Seek(timestamp int64, backward bool) error

	// ReadPacket returns the next packet of any stream, or io.EOF.
	ReadPacket() (Packet, error)

	// NewDecoder creates a decoder for the selected video stream.
	NewDecoder() (Decoder, error)

	// Close releases the container.
	Close() error
}

// Decoder turns packets into raw frames.
type Decoder interface {
	// SendPacket feeds one packet to the decoder.
	SendPacket(pkt Packet) error

	// ReceiveFrame returns the next decoded frame. It returns ErrNeedMoreInput
	// when another packet is required, and io.EOF once a drain completes.
	ReceiveFrame() (RawFrame, error)

	// Drain signals the end of input so buffered frames become receivable.
	Drain() error

	// Flush discards all buffered state, typically after a seek.
	Flush()

	// ConvertToBGR24 converts a frame to tightly packed BGR24.
	ConvertToBGR24(frame RawFrame) ([]byte, error)

	// Close releases the decoder.
	Close() error
}
