// Package summarizer provides summary generation for opened video streams.
package summarizer

import (
	"time"

	"github.com/user/framegrab/pkg/extractor"
)

// Summary contains everything reported about one opened stream.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	Source   SourceInfo
	Stream   StreamInfo
	Index    IndexInfo
	Camera   CameraInfo
	Settings Settings
}

// SourceInfo describes the input file and the backend that opened it.
type SourceInfo struct {
	Path      string
	FileSize  int64
	Container string
	Backend   string
}

// StreamInfo contains the selected video stream metadata.
type StreamInfo struct {
	Codec       string
	Width       int
	Height      int
	FrameRate   float64
	DurationSec float64

	// TotalFrames is the count requests are validated against.
	TotalFrames int
	// PacketFrames is the count of timestamped packets seen while indexing.
	PacketFrames int
}

// IndexInfo contains the keyframe index layout.
type IndexInfo struct {
	Keyframes   []int
	MinInterval int
}

// CameraInfo describes the camera that recorded the stream.
type CameraInfo struct {
	Model string
	Type  string
}

// Settings contains the extraction configuration.
type Settings struct {
	FrameCountSource string
	SeekRetries      int
	ConvertTo16Bit   bool
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets source file information.
func (b *Builder) WithSource(source SourceInfo) *Builder {
	b.summary.Source = source
	return b
}

// WithStream sets stream metadata.
func (b *Builder) WithStream(stream StreamInfo) *Builder {
	b.summary.Stream = stream
	return b
}

// WithIndex sets keyframe index information.
func (b *Builder) WithIndex(keyframes []int, minInterval int) *Builder {
	b.summary.Index = IndexInfo{
		Keyframes:   keyframes,
		MinInterval: minInterval,
	}
	return b
}

// WithCamera sets camera information.
func (b *Builder) WithCamera(camera CameraInfo) *Builder {
	b.summary.Camera = camera
	return b
}

// WithSettings sets extraction settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithExtractor fills stream and index information from an open extractor.
// The frame size is only known once a frame has been decoded.
func (b *Builder) WithExtractor(x *extractor.Extractor, minInterval int) *Builder {
	stream := x.Stream()
	info := StreamInfo{
		Codec:        stream.Codec,
		Width:        stream.Width,
		Height:       stream.Height,
		FrameRate:    x.FrameRate(),
		DurationSec:  x.Duration(),
		TotalFrames:  x.TotalFrames(),
		PacketFrames: x.PacketFrameCount(),
	}
	if size, ok := x.FrameSize(); ok {
		info.Width, info.Height = size.Width, size.Height
	}
	b.summary.Stream = info
	return b.WithIndex(x.KeyframePositions(), minInterval)
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
