// Package smartcapability provides a decode capability that inspects the
// input file and selects the appropriate demuxer and decoder backend.
package smartcapability

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/user/framegrab/pkg/adapters/codecdetect"
	"github.com/user/framegrab/pkg/adapters/ffmpegdecoder"
	"github.com/user/framegrab/pkg/adapters/libav"
	"github.com/user/framegrab/pkg/adapters/mp4demux"
	"github.com/user/framegrab/pkg/adapters/tsdemux"
	"github.com/user/framegrab/pkg/ports"
)

// Backend represents the decoding backend used.
type Backend string

const (
	// BackendLibav decodes in-process through go-astiav.
	BackendLibav Backend = "libav"
	// BackendFFmpeg demuxes in Go and decodes with an ffmpeg child process.
	BackendFFmpeg Backend = "ffmpeg"
)

// Info contains information about the selected backend.
type Info struct {
	// Container is the detected container format.
	Container codecdetect.Container
	// Backend is the decoding backend being used.
	Backend Backend
	// Codec is the video codec found in MP4 headers. It stays empty for
	// MPEG-TS and for the libav backend, which select streams themselves.
	Codec codecdetect.Codec
}

// Options configures the smart capability behavior.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string

	// DisableLibav forces the Go demuxers even when libav is compiled in.
	DisableLibav bool

	// Decoders overrides the decoder factory used with the Go demuxers.
	Decoders ports.DecoderFactory
}

// ErrUnknownContainer is returned when the file is neither MP4 nor MPEG-TS
// and libav is not available to probe it.
var ErrUnknownContainer = errors.New("smartcapability: unrecognized container")

// Capability implements ports.DecodeCapability by delegating every Open to
// the backend selected for that file.
type Capability struct {
	opts     Options
	decoders ports.DecoderFactory

	mu   sync.Mutex
	last Info
}

// New creates a smart capability.
func New(opts Options) *Capability {
	decoders := opts.Decoders
	if decoders == nil {
		if opts.FFmpegPath != "" {
			ffmpegdecoder.SetFFmpegPath(opts.FFmpegPath)
		}
		decoders = ffmpegdecoder.NewFactory(ffmpegdecoder.Options{FFmpegPath: opts.FFmpegPath})
	}
	return &Capability{opts: opts, decoders: decoders}
}

// Detect reports which container and backend Open would use for path.
//
// The selection flow:
//   - libav compiled in: libav handles every container
//   - MP4: mp4demux with the ffmpeg decoder, for codecs ffmpegdecoder reads
//   - MPEG-TS: tsdemux with the ffmpeg decoder
func (c *Capability) Detect(path string) (Info, error) {
	container, err := codecdetect.DetectContainer(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ports.ErrNotFound, path)
		}
		return Info{}, fmt.Errorf("%w: %v", ports.ErrOpenFailed, err)
	}

	if libav.Available() && !c.opts.DisableLibav {
		return Info{Container: container, Backend: BackendLibav}, nil
	}

	switch container {
	case codecdetect.ContainerMP4:
		info := Info{Container: container, Backend: BackendFFmpeg}
		// Unparseable headers are left to mp4demux, which reports them.
		codec, err := codecdetect.DetectFromFile(path)
		if err != nil {
			return info, nil
		}
		info.Codec = codec
		if !ffmpegdecoder.Supports(string(codec)) {
			return Info{}, fmt.Errorf("%w: %s video in %s", ports.ErrUnsupportedCodec, codec, path)
		}
		return info, nil
	case codecdetect.ContainerMPEGTS:
		return Info{Container: container, Backend: BackendFFmpeg}, nil
	default:
		return Info{}, fmt.Errorf("%w: %w: %s", ports.ErrOpenFailed, ErrUnknownContainer, path)
	}
}

func (c *Capability) Open(path string) (ports.Container, error) {
	info, err := c.Detect(path)
	if err != nil {
		return nil, err
	}

	var capability ports.DecodeCapability
	switch {
	case info.Backend == BackendLibav:
		capability = libav.New()
	case info.Container == codecdetect.ContainerMP4:
		capability = mp4demux.New(c.decoders)
	default:
		capability = tsdemux.New(c.decoders)
	}

	container, err := capability.Open(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.last = info
	c.mu.Unlock()
	return container, nil
}

// Info returns the selection made by the most recent successful Open.
func (c *Capability) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// IsLibavAvailable reports whether the in-process backend is compiled in.
func IsLibavAvailable() bool {
	return libav.Available()
}

// IsFFmpegAvailable reports whether an ffmpeg binary can be found.
func IsFFmpegAvailable() bool {
	return ffmpegdecoder.IsAvailable()
}

var _ ports.DecodeCapability = (*Capability)(nil)
