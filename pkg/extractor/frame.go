package extractor

import "errors"

var (
	// ErrOutOfRange is returned for frame numbers outside [0, TotalFrames).
	ErrOutOfRange = errors.New("extractor: frame number out of range")

	// ErrSeekFailed is returned when every attempt to seek to a keyframe failed.
	ErrSeekFailed = errors.New("extractor: seek to keyframe failed")

	// ErrDecoderInit is returned when the decoder cannot be created.
	ErrDecoderInit = errors.New("extractor: decoder initialization failed")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("extractor: closed")
)

// FrameSize is the size of decoded frames in pixels.
type FrameSize struct {
	Height int
	Width  int
}

// EmptyReason explains why GetFrame produced no frame.
type EmptyReason string

const (
	// EndOfStream means packets ran out before the frame was produced.
	EndOfStream EmptyReason = "end_of_stream"
	// NoKeyframe means no indexed keyframe precedes the frame.
	NoKeyframe EmptyReason = "no_keyframe"
	// DecodeFailed means the decoder rejected a packet or a conversion failed.
	DecodeFailed EmptyReason = "decode_failed"
	// RewindFailed means the container could not be rewound for frame 0.
	RewindFailed EmptyReason = "rewind_failed"
)

// Frame is the result of GetFrame. Data holds Size.Height*Size.Width*3
// bytes of tightly packed BGR24, or nothing when the result is empty.
type Frame struct {
	Index  int
	Size   FrameSize
	Data   []byte
	Reason EmptyReason
}

// Empty reports whether no frame was produced.
func (f Frame) Empty() bool {
	return f.Data == nil
}

func emptyFrame(n int, reason EmptyReason) Frame {
	return Frame{Index: n, Reason: reason}
}
