// Package extractor provides random access to the frames of a compressed
// video stream. It builds a sparse keyframe index once at open time, then
// serves each request either by continuing from the previous frame or by
// seeking to the nearest indexed keyframe and decoding forward.
//
// An Extractor is not safe for concurrent use. Use one instance per goroutine.
package extractor

import (
	"errors"
	"fmt"

	"github.com/user/framegrab/pkg/keyframes"
	"github.com/user/framegrab/pkg/ports"
)

// Extractor owns one open container, its keyframe index and, once the
// first frame is requested, one decoder.
type Extractor struct {
	opts   Options
	log    ports.Logger
	obs    ports.Observer
	path   string
	stream ports.StreamInfo

	container ports.Container
	decoder   ports.Decoder

	index        *keyframes.Index
	totalFrames  int
	packetFrames int

	state     AccessState
	frameSize *FrameSize
	closed    bool
}

// Open opens path through capability and builds the keyframe index.
func Open(capability ports.DecodeCapability, path string, opts Options) (*Extractor, error) {
	opts = opts.withDefaults()
	log := opts.Logger.WithComponent("extractor")

	container, err := capability.Open(path)
	if err != nil {
		log.Error("Failed to open %s: %v", path, err)
		return nil, fmt.Errorf("extractor: open %s: %w", path, err)
	}

	stream := container.VideoStream()
	log.Debug("Video stream %d: codec=%s size=%dx%d", stream.Index, stream.Codec, stream.Width, stream.Height)

	result, err := keyframes.Build(container, opts.MinKeyframeInterval, opts.Logger.WithComponent("keyframes"))
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("extractor: index %s: %w", path, err)
	}
	opts.Observer.ObserveIndexBuild(result.Index.Len(), result.Packets)

	total := result.FrameCount
	if opts.FrameCountSource == FrameCountFromPackets {
		total = result.PacketFrames
	}

	return &Extractor{
		opts:         opts,
		log:          log,
		obs:          opts.Observer,
		path:         path,
		stream:       stream,
		container:    container,
		index:        result.Index,
		totalFrames:  total,
		packetFrames: result.PacketFrames,
		state:        idleState,
	}, nil
}

// GetFrame returns frame n as BGR24. An empty Frame means the frame is not
// available now (end of stream, no keyframe, decode failure). Errors are
// reserved for out-of-range requests and conditions that leave the stream
// unusable.
func (x *Extractor) GetFrame(n int) (Frame, error) {
	if x.closed {
		return Frame{}, ErrClosed
	}
	if n < 0 || n >= x.totalFrames {
		x.obs.ObserveAccess(ports.AccessRandom, ports.OutcomeError)
		return Frame{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, n, x.totalFrames)
	}

	if x.state.canContinue(n) {
		frame := x.sequential(n)
		if !frame.Empty() {
			return frame, nil
		}
		x.log.Debug("Sequential read of frame %d failed (%s), falling back to seek", n, frame.Reason)
	}

	if err := x.ensureDecoder(); err != nil {
		x.obs.ObserveAccess(pathFor(n), ports.OutcomeError)
		return Frame{}, err
	}

	if n == 0 {
		return x.frameZero(), nil
	}
	return x.random(n)
}

func pathFor(n int) ports.AccessPath {
	if n == 0 {
		return ports.AccessFrameZero
	}
	return ports.AccessRandom
}

func (x *Extractor) ensureDecoder() error {
	if x.decoder != nil {
		return nil
	}
	dec, err := x.container.NewDecoder()
	if err != nil {
		x.log.Error("Failed to create decoder for codec %s: %v", x.stream.Codec, err)
		return fmt.Errorf("%w: %v", ErrDecoderInit, err)
	}
	x.decoder = dec
	return nil
}

// sequential takes the next decoded frame without seeking.
func (x *Extractor) sequential(n int) Frame {
	frame, decoded := x.decodeUntil(n, func(int) bool { return true }, n)
	x.obs.ObserveDecodedFrames(decoded)
	if frame.Empty() {
		x.state = transition(x.state, event{kind: eventSequentialMiss})
		x.obs.ObserveAccess(ports.AccessSequential, ports.OutcomeEmpty)
		return frame
	}
	x.state = transition(x.state, event{kind: eventDelivered, frame: n})
	x.obs.ObserveAccess(ports.AccessSequential, ports.OutcomeFrame)
	return frame
}

// frameZero rewinds to the start of the container and takes the first frame.
func (x *Extractor) frameZero() Frame {
	x.state = transition(x.state, event{kind: eventSeek})

	if err := x.container.Seek(0, true); err != nil {
		x.log.Warn("Error seeking to beginning of file: %v", err)
		x.state = transition(x.state, event{kind: eventMiss})
		x.obs.ObserveAccess(ports.AccessFrameZero, ports.OutcomeEmpty)
		return emptyFrame(0, RewindFailed)
	}
	x.decoder.Flush()

	frame, decoded := x.decodeUntil(0, func(int) bool { return true }, 0)
	x.obs.ObserveDecodedFrames(decoded)
	return x.finish(ports.AccessFrameZero, frame)
}

// random seeks to the closest indexed keyframe at or before n and decodes
// forward, counting frames from the keyframe, until frame n is produced.
func (x *Extractor) random(n int) (Frame, error) {
	x.state = transition(x.state, event{kind: eventSeek})

	entry, found, err := x.seekToKeyframe(n)
	if err != nil {
		x.state = transition(x.state, event{kind: eventMiss})
		x.obs.ObserveAccess(ports.AccessRandom, ports.OutcomeError)
		return Frame{}, err
	}
	if !found {
		x.log.Warn("No keyframe found at or before frame %d", n)
		x.state = transition(x.state, event{kind: eventMiss})
		x.obs.ObserveAccess(ports.AccessRandom, ports.OutcomeEmpty)
		return emptyFrame(n, NoKeyframe), nil
	}

	x.log.Debug("Decoding from keyframe %d to frame %d", entry.FrameIndex, n)
	frame, decoded := x.decodeUntil(n, func(counter int) bool { return counter == n }, entry.FrameIndex)
	x.obs.ObserveDecodedFrames(decoded)
	return x.finish(ports.AccessRandom, frame), nil
}

// finish records the state and outcome of a seek-based request.
func (x *Extractor) finish(path ports.AccessPath, frame Frame) Frame {
	if frame.Empty() {
		x.log.Warn("Frame %d unavailable: %s", frame.Index, frame.Reason)
		x.state = transition(x.state, event{kind: eventMiss})
		x.obs.ObserveAccess(path, ports.OutcomeEmpty)
		return frame
	}
	x.state = transition(x.state, event{kind: eventDelivered, frame: frame.Index})
	x.obs.ObserveAccess(path, ports.OutcomeFrame)
	return frame
}

// TotalFrames returns the number of frames requests are validated against.
// With FrameCountFromDuration it comes from metadata and may exceed the
// frames that actually decode.
func (x *Extractor) TotalFrames() int {
	return x.totalFrames
}

// PacketFrameCount returns the number of timestamped packets seen while
// building the index.
func (x *Extractor) PacketFrameCount() int {
	return x.packetFrames
}

// FrameRate returns the average frame rate, falling back to the base rate.
func (x *Extractor) FrameRate() float64 {
	if r := x.stream.AvgFrameRate.Float64(); r > 0 {
		return r
	}
	return x.stream.RFrameRate.Float64()
}

// Duration returns the stream duration in seconds.
func (x *Extractor) Duration() float64 {
	return x.stream.DurationSeconds()
}

// KeyframePositions returns the indexed frame numbers in ascending order.
func (x *Extractor) KeyframePositions() []int {
	return x.index.Positions()
}

// FrameSize returns the size recorded from the first decoded frame.
func (x *Extractor) FrameSize() (FrameSize, bool) {
	if x.frameSize == nil {
		return FrameSize{}, false
	}
	return *x.frameSize, true
}

// Stream returns metadata of the selected video stream.
func (x *Extractor) Stream() ports.StreamInfo {
	return x.stream
}

// State returns the current access state.
func (x *Extractor) State() AccessState {
	return x.state
}

// Close releases the decoder and then the container. It is safe to call
// more than once.
func (x *Extractor) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	x.state = transition(x.state, event{kind: eventClose})

	var errs []error
	if x.decoder != nil {
		if err := x.decoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close decoder: %w", err))
		}
		x.decoder = nil
	}
	if err := x.container.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close container: %w", err))
	}
	return errors.Join(errs...)
}
