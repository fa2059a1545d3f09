package extractor

import (
	"github.com/user/framegrab/pkg/adapters/logger"
	"github.com/user/framegrab/pkg/keyframes"
	"github.com/user/framegrab/pkg/ports"
)

// DefaultSeekRetryCount is the number of seek attempts made for one keyframe
// before the request fails with ErrSeekFailed.
const DefaultSeekRetryCount = 3

// FrameCountSource selects how TotalFrames is derived.
type FrameCountSource string

const (
	// FrameCountFromDuration uses floor(duration * base frame rate) from
	// container metadata. It may overestimate the decodable frames.
	FrameCountFromDuration FrameCountSource = "duration"

	// FrameCountFromPackets uses the number of timestamped packets counted
	// while building the keyframe index.
	FrameCountFromPackets FrameCountSource = "packets"
)

// Options configures an Extractor.
type Options struct {
	// MinKeyframeInterval is the minimum distance in frames between indexed keyframes.
	MinKeyframeInterval int

	// SeekRetryCount is the number of attempts for one keyframe seek.
	SeekRetryCount int

	FrameCountSource FrameCountSource

	Logger   ports.Logger
	Observer ports.Observer
}

// DefaultOptions returns the default extractor options.
func DefaultOptions() Options {
	return Options{
		MinKeyframeInterval: keyframes.DefaultMinInterval,
		SeekRetryCount:      DefaultSeekRetryCount,
		FrameCountSource:    FrameCountFromDuration,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinKeyframeInterval <= 0 {
		o.MinKeyframeInterval = d.MinKeyframeInterval
	}
	if o.SeekRetryCount <= 0 {
		o.SeekRetryCount = d.SeekRetryCount
	}
	if o.FrameCountSource != FrameCountFromPackets {
		o.FrameCountSource = FrameCountFromDuration
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoop()
	}
	if o.Observer == nil {
		o.Observer = ports.NopObserver{}
	}
	return o
}
