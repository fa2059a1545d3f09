// Package tsdemux implements ports.DecodeCapability for MPEG transport
// streams. Demuxing is done with go-astits; each PES unit of the first video
// elementary stream becomes one packet. Decoding is delegated to a
// ports.DecoderFactory.
package tsdemux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/asticode/go-astits"

	"github.com/user/framegrab/pkg/ports"
)

// TimeBase is the MPEG-TS clock for PTS and DTS.
var TimeBase = ports.Rational{Num: 1, Den: 90000}

// Capability opens MPEG-TS files.
type Capability struct {
	decoders ports.DecoderFactory
}

// New creates an MPEG-TS capability that decodes with decoders.
func New(decoders ports.DecoderFactory) *Capability {
	return &Capability{decoders: decoders}
}

// Open probes path and selects its first video elementary stream.
func (c *Capability) Open(path string) (ports.Container, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ports.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ports.ErrOpenFailed, err)
	}

	container, err := open(f, c.decoders)
	if err != nil {
		f.Close()
		return nil, err
	}
	container.closer = f
	return container, nil
}

func open(r io.ReadSeeker, decoders ports.DecoderFactory) (*Container, error) {
	p, err := probe(r)
	if err != nil {
		return nil, err
	}

	c := &Container{
		r:        r,
		probe:    p,
		stream:   p.streamInfo(),
		decoders: decoders,
	}
	if err := c.rewind(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrOpenFailed, err)
	}
	return c, nil
}

// Container is an open transport stream. It reads PES units of the selected
// video PID in order; Seek restarts demuxing and skips to a keyframe unit.
type Container struct {
	r        io.ReadSeeker
	closer   io.Closer
	probe    *probeResult
	stream   ports.StreamInfo
	decoders ports.DecoderFactory

	ctx    context.Context
	cancel context.CancelFunc
	dmx    *astits.Demuxer
	// ordinal is the number of video units returned since the last rewind.
	ordinal int
	// sawPMT is set once the current demux pass has read a PMT. Units
	// before it are skipped, as probing does.
	sawPMT bool
	ts     unwrapper
}

func (c *Container) VideoStream() ports.StreamInfo {
	return c.stream
}

// rewind restarts demuxing from the first byte.
func (c *Container) rewind() error {
	if c.cancel != nil {
		c.cancel()
	}
	if _, err := c.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("tsdemux: rewind: %w", err)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.dmx = astits.NewDemuxer(c.ctx, c.r, astits.DemuxerOptPacketSize(packetSize))
	c.ordinal = 0
	c.sawPMT = false
	c.ts = unwrapper{}
	return nil
}

// Seek positions the container on a keyframe unit found while probing. With
// backward set it picks the last keyframe whose PTS is <= timestamp, falling
// back to the first unit; otherwise the first keyframe whose PTS is >= timestamp.
func (c *Container) Seek(timestamp int64, backward bool) error {
	target, ok := c.probe.keyframeFor(timestamp, backward)
	if !ok {
		return fmt.Errorf("tsdemux: no keyframe at or after %d", timestamp)
	}

	if target < c.ordinal || target == 0 {
		if err := c.rewind(); err != nil {
			return err
		}
	}
	for c.ordinal < target {
		if _, err := c.nextUnit(); err != nil {
			return fmt.Errorf("tsdemux: skip to unit %d: %w", target, err)
		}
	}
	return nil
}

// ReadPacket returns the next PES unit of the video stream.
func (c *Container) ReadPacket() (ports.Packet, error) {
	u, err := c.nextUnit()
	if err != nil {
		return ports.Packet{}, err
	}
	return ports.Packet{
		StreamIndex: c.stream.Index,
		PTS:         u.pts,
		DTS:         u.dts,
		Keyframe:    u.keyframe,
		Pos:         -1,
		Data:        u.data,
	}, nil
}

func (c *Container) nextUnit() (unit, error) {
	for {
		d, err := c.dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return unit{}, io.EOF
			}
			return unit{}, fmt.Errorf("tsdemux: %w", err)
		}
		if d.PMT != nil {
			c.sawPMT = true
			continue
		}
		if !c.sawPMT || d.PES == nil || d.PID != c.probe.pid {
			continue
		}
		u := unitFromPES(d, c.probe.codec, &c.ts)
		c.ordinal++
		return u, nil
	}
}

func (c *Container) NewDecoder() (ports.Decoder, error) {
	if c.decoders == nil {
		return nil, fmt.Errorf("%w: no decoder for %s", ports.ErrUnsupportedCodec, c.stream.Codec)
	}
	return c.decoders(c.stream)
}

// Close stops demuxing and closes the file when the container opened it.
func (c *Container) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

var (
	_ ports.DecodeCapability = (*Capability)(nil)
	_ ports.Container        = (*Container)(nil)
)
