//go:build libav

package libav

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/asticode/go-astiav"

	"github.com/user/framegrab/pkg/ports"
)

// avTimeBase is AV_TIME_BASE, the unit of FormatContext.Duration.
const avTimeBase = 1000000

// Capability opens containers with libavformat and decodes with libavcodec.
type Capability struct{}

// New creates a libav capability.
func New() *Capability {
	return &Capability{}
}

// Available returns true when built with the libav tag.
func Available() bool {
	return true
}

func (c *Capability) Open(path string) (ports.Container, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ports.ErrNotFound, path)
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("%w: alloc format context", ports.ErrOpenFailed)
	}
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("%w: %v", ports.ErrOpenFailed, err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("%w: find stream info: %v", ports.ErrOpenFailed, err)
	}

	var video *astiav.Stream
	for _, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			video = s
			break
		}
	}
	if video == nil {
		fc.CloseInput()
		fc.Free()
		return nil, ports.ErrNoVideoStream
	}

	return &Container{
		fc:     fc,
		stream: video,
		info:   streamInfo(fc, video),
		pkt:    astiav.AllocPacket(),
	}, nil
}

var _ ports.DecodeCapability = (*Capability)(nil)

func rational(r astiav.Rational) ports.Rational {
	return ports.Rational{Num: r.Num(), Den: r.Den()}
}

func streamInfo(fc *astiav.FormatContext, s *astiav.Stream) ports.StreamInfo {
	cp := s.CodecParameters()
	tb := s.TimeBase()

	duration := s.Duration()
	if (duration <= 0 || duration == astiav.NoPtsValue) && fc.Duration() > 0 && tb.Num() > 0 {
		duration = fc.Duration() * int64(tb.Den()) / (int64(tb.Num()) * avTimeBase)
	}

	return ports.StreamInfo{
		Index:        s.Index(),
		Codec:        cp.CodecID().String(),
		Width:        cp.Width(),
		Height:       cp.Height(),
		Duration:     duration,
		TimeBase:     rational(tb),
		AvgFrameRate: rational(s.AvgFrameRate()),
		RFrameRate:   rational(s.RFrameRate()),
	}
}

// Container wraps one libavformat input.
type Container struct {
	fc     *astiav.FormatContext
	stream *astiav.Stream
	info   ports.StreamInfo
	pkt    *astiav.Packet
	closed bool
}

func (c *Container) VideoStream() ports.StreamInfo {
	return c.info
}

func (c *Container) Seek(timestamp int64, backward bool) error {
	flags := astiav.NewSeekFlags()
	if backward {
		flags = astiav.NewSeekFlags(astiav.SeekFlagBackward)
	}
	if err := c.fc.SeekFrame(c.stream.Index(), timestamp, flags); err != nil {
		return fmt.Errorf("libav: seek to %d: %w", timestamp, err)
	}
	return nil
}

func (c *Container) ReadPacket() (ports.Packet, error) {
	if err := c.fc.ReadFrame(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return ports.Packet{}, io.EOF
		}
		return ports.Packet{}, fmt.Errorf("libav: read frame: %w", err)
	}
	defer c.pkt.Unref()

	return ports.Packet{
		StreamIndex: c.pkt.StreamIndex(),
		PTS:         timestamp(c.pkt.Pts()),
		DTS:         timestamp(c.pkt.Dts()),
		Keyframe:    c.pkt.Flags().Has(astiav.PacketFlagKey),
		Pos:         c.pkt.Pos(),
		Data:        c.pkt.Data(),
	}, nil
}

func timestamp(ts int64) int64 {
	if ts == astiav.NoPtsValue {
		return ports.NoPTS
	}
	return ts
}

func (c *Container) NewDecoder() (ports.Decoder, error) {
	d := &Decoder{params: c.stream.CodecParameters()}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.pkt.Free()
	c.fc.CloseInput()
	c.fc.Free()
	return nil
}

var _ ports.Container = (*Container)(nil)

var errNoContext = errors.New("libav: decoder has no open codec context")

// Decoder wraps a libavcodec context. Flush reopens the context, which
// drops every buffered frame and the drain state.
type Decoder struct {
	params *astiav.CodecParameters
	cc     *astiav.CodecContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	sws    *astiav.SoftwareScaleContext
}

func (d *Decoder) open() error {
	codec := astiav.FindDecoder(d.params.CodecID())
	if codec == nil {
		return fmt.Errorf("%w: %s", ErrNoDecoder, d.params.CodecID())
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return fmt.Errorf("%w: alloc codec context", ErrNoDecoder)
	}
	if err := d.params.ToCodecContext(cc); err != nil {
		cc.Free()
		return fmt.Errorf("libav: codec parameters: %w", err)
	}
	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return fmt.Errorf("libav: open codec: %w", err)
	}
	d.cc = cc
	if d.pkt == nil {
		d.pkt = astiav.AllocPacket()
	}
	if d.frame == nil {
		d.frame = astiav.AllocFrame()
	}
	return nil
}

func (d *Decoder) SendPacket(pkt ports.Packet) error {
	if d.cc == nil {
		return errNoContext
	}
	if err := d.pkt.FromData(pkt.Data); err != nil {
		return fmt.Errorf("libav: packet data: %w", err)
	}
	defer d.pkt.Unref()

	d.pkt.SetPts(avTimestamp(pkt.PTS))
	d.pkt.SetDts(avTimestamp(pkt.DTS))
	if pkt.Keyframe {
		d.pkt.SetFlags(d.pkt.Flags().Add(astiav.PacketFlagKey))
	}
	if err := d.cc.SendPacket(d.pkt); err != nil {
		return fmt.Errorf("libav: send packet: %w", err)
	}
	return nil
}

func avTimestamp(ts int64) int64 {
	if ts == ports.NoPTS {
		return astiav.NoPtsValue
	}
	return ts
}

func (d *Decoder) ReceiveFrame() (ports.RawFrame, error) {
	if d.cc == nil {
		return ports.RawFrame{}, errNoContext
	}
	d.frame.Unref()
	if err := d.cc.ReceiveFrame(d.frame); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return ports.RawFrame{}, ports.ErrNeedMoreInput
		case errors.Is(err, astiav.ErrEof):
			return ports.RawFrame{}, io.EOF
		default:
			return ports.RawFrame{}, fmt.Errorf("libav: receive frame: %w", err)
		}
	}
	return ports.RawFrame{
		Width:  d.frame.Width(),
		Height: d.frame.Height(),
		Format: ports.PixelFormat(d.frame.PixelFormat().String()),
		PTS:    timestamp(d.frame.Pts()),
		Handle: d.frame,
	}, nil
}

func (d *Decoder) Drain() error {
	if d.cc == nil {
		return errNoContext
	}
	if err := d.cc.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("libav: drain: %w", err)
	}
	return nil
}

func (d *Decoder) Flush() {
	if d.cc != nil {
		d.cc.Free()
		d.cc = nil
	}
	// A failed reopen surfaces on the next SendPacket.
	_ = d.open()
}

// ConvertToBGR24 scales the native frame with libswscale. The scale
// context is rebuilt whenever the source geometry or format changes.
func (d *Decoder) ConvertToBGR24(frame ports.RawFrame) ([]byte, error) {
	src, ok := frame.Handle.(*astiav.Frame)
	if !ok || src == nil {
		return nil, fmt.Errorf("libav: frame has no native handle")
	}
	w, h := src.Width(), src.Height()

	if d.sws == nil || d.sws.SourceWidth() != w || d.sws.SourceHeight() != h || d.sws.SourcePixelFormat() != src.PixelFormat() {
		if d.sws != nil {
			d.sws.Free()
		}
		sws, err := astiav.CreateSoftwareScaleContext(w, h, src.PixelFormat(), w, h, astiav.PixelFormatBgr24,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear))
		if err != nil {
			return nil, fmt.Errorf("libav: create scale context: %w", err)
		}
		d.sws = sws
	}

	dst := astiav.AllocFrame()
	defer dst.Free()
	if err := d.sws.ScaleFrame(src, dst); err != nil {
		return nil, fmt.Errorf("libav: scale frame: %w", err)
	}
	return dst.Data().Bytes(1)
}

func (d *Decoder) Close() error {
	if d.sws != nil {
		d.sws.Free()
		d.sws = nil
	}
	if d.cc != nil {
		d.cc.Free()
		d.cc = nil
	}
	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	return nil
}

var _ ports.Decoder = (*Decoder)(nil)
