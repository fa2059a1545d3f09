// Package mp4demux implements ports.DecodeCapability for progressive and
// fragmented MP4 files. Demuxing is done with mp4ff; decoding is delegated
// to a ports.DecoderFactory.
package mp4demux

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framegrab/pkg/adapters/codecdetect"
	"github.com/user/framegrab/pkg/ports"
)

// Capability opens MP4 files.
type Capability struct {
	decoders ports.DecoderFactory
}

// New creates an MP4 capability that decodes with decoders.
func New(decoders ports.DecoderFactory) *Capability {
	return &Capability{decoders: decoders}
}

// Open parses path and selects its first video track.
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
	mp4File, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode mp4: %v", ports.ErrOpenFailed, err)
	}

	moov := mp4File.Moov
	if moov == nil && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	if moov == nil {
		return nil, fmt.Errorf("%w: no moov box", ports.ErrOpenFailed)
	}
	trak := findVideoTrack(moov)
	if trak == nil {
		return nil, ports.ErrNoVideoStream
	}

	track, err := readTrack(mp4File, trak, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrOpenFailed, err)
	}

	return &Container{
		r:        r,
		track:    track,
		stream:   track.streamInfo(),
		decoders: decoders,
	}, nil
}

// findVideoTrack returns the first video track.
func findVideoTrack(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if codecdetect.IsVideoTrack(trak) {
			return trak
		}
	}
	return nil
}

// Container is an open MP4 file positioned on one of its video samples.
type Container struct {
	r        io.ReadSeeker
	closer   io.Closer
	track    *track
	stream   ports.StreamInfo
	decoders ports.DecoderFactory
	cursor   int
}

func (c *Container) VideoStream() ports.StreamInfo {
	return c.stream
}

// Seek positions the container on a sync sample. With backward set it picks
// the last sync sample whose PTS is <= timestamp, falling back to the first
// sample; otherwise the first sync sample whose PTS is >= timestamp.
func (c *Container) Seek(timestamp int64, backward bool) error {
	samples := c.track.samples
	if backward {
		target := 0
		for i, s := range samples {
			if s.sync && s.pts <= timestamp {
				target = i
			}
		}
		c.cursor = target
		return nil
	}

	for i, s := range samples {
		if s.sync && s.pts >= timestamp {
			c.cursor = i
			return nil
		}
	}
	return fmt.Errorf("mp4demux: no sync sample at or after %d", timestamp)
}

// ReadPacket returns the next video sample.
func (c *Container) ReadPacket() (ports.Packet, error) {
	if c.cursor >= len(c.track.samples) {
		return ports.Packet{}, io.EOF
	}
	s := c.track.samples[c.cursor]

	data, err := c.track.sampleData(c.r, s)
	if err != nil {
		return ports.Packet{}, fmt.Errorf("mp4demux: sample %d: %w", c.cursor+1, err)
	}
	c.cursor++

	return ports.Packet{
		StreamIndex: c.stream.Index,
		PTS:         s.pts,
		DTS:         s.dts,
		Keyframe:    s.sync,
		Pos:         s.offset,
		Data:        data,
	}, nil
}

func (c *Container) NewDecoder() (ports.Decoder, error) {
	if c.decoders == nil {
		return nil, fmt.Errorf("%w: no decoder for %s", ports.ErrUnsupportedCodec, c.stream.Codec)
	}
	return c.decoders(c.stream)
}

// Close closes the file when the container opened it.
func (c *Container) Close() error {
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
