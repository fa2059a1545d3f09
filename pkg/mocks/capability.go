package mocks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/user/framegrab/pkg/pixconv"
	"github.com/user/framegrab/pkg/ports"
)

// Stream indices used by the synthetic container.
const (
	VideoStreamIndex = 0
	AudioStreamIndex = 1
)

// StreamSpec describes a synthetic video stream. Frame k is a packet whose
// PTS and DTS are k in a 1/FrameRate time base.
type StreamSpec struct {
	// Frames is the number of video packets actually present.
	Frames int

	// Keyframes lists keyframe positions. When empty, KeyframeEvery is used.
	Keyframes []int
	// KeyframeEvery places a keyframe every n frames (0 means only frame 0).
	KeyframeEvery int

	Width     int
	Height    int
	FrameRate int

	// AdvertisedFrames sets the metadata duration in frames. Zero means Frames.
	AdvertisedFrames int

	// AudioEvery interleaves one audio packet after every n video packets.
	AudioEvery int

	// NoPTS lists frames whose packet carries no PTS.
	NoPTS []int
}

func (s StreamSpec) withDefaults() StreamSpec {
	if s.Width == 0 {
		s.Width = 8
	}
	if s.Height == 0 {
		s.Height = 4
	}
	if s.FrameRate == 0 {
		s.FrameRate = 25
	}
	if s.AdvertisedFrames == 0 {
		s.AdvertisedFrames = s.Frames
	}
	return s
}

func (s StreamSpec) isKeyframe(k int) bool {
	if len(s.Keyframes) > 0 {
		for _, kf := range s.Keyframes {
			if kf == k {
				return true
			}
		}
		return false
	}
	if s.KeyframeEvery <= 0 {
		return k == 0
	}
	return k%s.KeyframeEvery == 0
}

func (s StreamSpec) hasPTS(k int) bool {
	for _, n := range s.NoPTS {
		if n == k {
			return false
		}
	}
	return true
}

// FramePixel returns the gray value the synthetic decoder paints at (x, y)
// of frame k. Tests use it to verify which frame was returned.
func FramePixel(k, x, y int) byte {
	return byte(k*7 + x + y*3)
}

// ExpectedBGR returns the BGR24 buffer the synthetic decoder produces for frame k.
func ExpectedBGR(spec StreamSpec, k int) []byte {
	spec = spec.withDefaults()
	out := make([]byte, pixconv.BGRSize(spec.Width, spec.Height))
	for y := 0; y < spec.Height; y++ {
		for x := 0; x < spec.Width; x++ {
			v := FramePixel(k, x, y)
			i := (y*spec.Width + x) * 3
			out[i], out[i+1], out[i+2] = v, v, v
		}
	}
	return out
}

// Capability is a mock implementation of ports.DecodeCapability that opens
// synthetic containers built from Spec.
type Capability struct {
	Spec StreamSpec

	OpenFunc func(path string) (ports.Container, error)
	// Configure is called on every new container before it is returned.
	Configure func(c *Container)

	mu         sync.Mutex
	OpenCalls  []string
	Containers []*Container
}

func (m *Capability) Open(path string) (ports.Container, error) {
	m.mu.Lock()
	m.OpenCalls = append(m.OpenCalls, path)
	m.mu.Unlock()

	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}

	c := NewContainer(m.Spec)
	if m.Configure != nil {
		m.Configure(c)
	}

	m.mu.Lock()
	m.Containers = append(m.Containers, c)
	m.mu.Unlock()
	return c, nil
}

var _ ports.DecodeCapability = (*Capability)(nil)

// Container is a mock implementation of ports.Container.
type Container struct {
	spec    StreamSpec
	packets []ports.Packet
	cursor  int

	SeekFunc       func(timestamp int64, backward bool) error
	ReadPacketFunc func() (ports.Packet, error)
	NewDecoderFunc func() (ports.Decoder, error)
	// DecoderSetup is applied to every decoder this container creates.
	DecoderSetup func(d *Decoder)

	// Recorded calls for verification
	SeekCalls   []SeekCall
	PacketsRead int
	Decoders    []*Decoder
	Closed      bool
}

// SeekCall records a call to Seek.
type SeekCall struct {
	Timestamp int64
	Backward  bool
}

// NewContainer creates a synthetic container positioned at its start.
func NewContainer(spec StreamSpec) *Container {
	spec = spec.withDefaults()
	c := &Container{spec: spec}

	for k := 0; k < spec.Frames; k++ {
		pts := int64(k)
		if !spec.hasPTS(k) {
			pts = ports.NoPTS
		}
		data := make([]byte, 4)
		binary.BigEndian.PutUint32(data, uint32(k))
		c.packets = append(c.packets, ports.Packet{
			StreamIndex: VideoStreamIndex,
			PTS:         pts,
			DTS:         int64(k),
			Keyframe:    spec.isKeyframe(k),
			Pos:         int64(len(c.packets)) * 188,
			Data:        data,
		})
		if spec.AudioEvery > 0 && (k+1)%spec.AudioEvery == 0 {
			c.packets = append(c.packets, ports.Packet{
				StreamIndex: AudioStreamIndex,
				PTS:         int64(k),
				DTS:         int64(k),
				Keyframe:    true,
				Pos:         int64(len(c.packets)) * 188,
				Data:        []byte{0xA0},
			})
		}
	}
	return c
}

func (c *Container) VideoStream() ports.StreamInfo {
	return ports.StreamInfo{
		Index:        VideoStreamIndex,
		Codec:        "synthetic",
		Width:        c.spec.Width,
		Height:       c.spec.Height,
		Duration:     int64(c.spec.AdvertisedFrames),
		TimeBase:     ports.Rational{Num: 1, Den: c.spec.FrameRate},
		AvgFrameRate: ports.Rational{Num: c.spec.FrameRate, Den: 1},
		RFrameRate:   ports.Rational{Num: c.spec.FrameRate, Den: 1},
	}
}

// Seek lands on the last keyframe at or before timestamp when backward is
// set, or the first keyframe at or after it otherwise. A backward seek
// before the first keyframe lands on the first packet.
func (c *Container) Seek(timestamp int64, backward bool) error {
	c.SeekCalls = append(c.SeekCalls, SeekCall{Timestamp: timestamp, Backward: backward})
	if c.SeekFunc != nil {
		if err := c.SeekFunc(timestamp, backward); err != nil {
			return err
		}
	}

	target := -1
	for i, p := range c.packets {
		if p.StreamIndex != VideoStreamIndex || !p.Keyframe {
			continue
		}
		if backward && p.DTS <= timestamp {
			target = i
		}
		if !backward && p.DTS >= timestamp {
			target = i
			break
		}
	}
	if target < 0 {
		if !backward {
			return fmt.Errorf("mock seek: no keyframe at or after %d", timestamp)
		}
		target = 0
	}
	c.cursor = target
	return nil
}

func (c *Container) ReadPacket() (ports.Packet, error) {
	if c.ReadPacketFunc != nil {
		return c.ReadPacketFunc()
	}
	if c.cursor >= len(c.packets) {
		return ports.Packet{}, io.EOF
	}
	p := c.packets[c.cursor]
	c.cursor++
	c.PacketsRead++
	return p, nil
}

func (c *Container) NewDecoder() (ports.Decoder, error) {
	if c.NewDecoderFunc != nil {
		return c.NewDecoderFunc()
	}
	d := NewDecoder(c.spec)
	if c.DecoderSetup != nil {
		c.DecoderSetup(d)
	}
	c.Decoders = append(c.Decoders, d)
	return d, nil
}

func (c *Container) Close() error {
	c.Closed = true
	return nil
}

var _ ports.Container = (*Container)(nil)

// ErrMockDecode is returned by Decoder for frames listed in FailFrames.
var ErrMockDecode = errors.New("mock decoder: corrupt packet")

// Decoder is a mock implementation of ports.Decoder. It paints each frame
// with FramePixel and only emits frames once it has seen a keyframe since
// the last flush, like a real inter-frame decoder.
type Decoder struct {
	spec StreamSpec

	// Delay holds back this many frames until more input or a drain arrives.
	Delay int
	// FailFrames makes SendPacket fail for these frame numbers.
	FailFrames map[int]bool
	// ShortFrames makes ConvertToBGR24 return a truncated buffer.
	ShortFrames map[int]bool
	// Sizes overrides the width and height of individual frames.
	Sizes map[int][2]int

	queue    []int
	haveRef  bool
	draining bool

	// Recorded calls for verification
	Sent    []int
	Flushes int
	Drains  int
	Closed  bool
}

// NewDecoder creates a synthetic decoder for spec.
func NewDecoder(spec StreamSpec) *Decoder {
	return &Decoder{spec: spec.withDefaults()}
}

func (d *Decoder) SendPacket(pkt ports.Packet) error {
	if len(pkt.Data) < 4 {
		return ErrMockDecode
	}
	k := int(binary.BigEndian.Uint32(pkt.Data))
	d.Sent = append(d.Sent, k)

	if d.FailFrames[k] {
		return fmt.Errorf("%w: frame %d", ErrMockDecode, k)
	}
	if pkt.Keyframe {
		d.haveRef = true
	}
	if !d.haveRef {
		return nil
	}
	d.queue = append(d.queue, k)
	return nil
}

func (d *Decoder) ReceiveFrame() (ports.RawFrame, error) {
	if len(d.queue) == 0 || (!d.draining && len(d.queue) <= d.Delay) {
		if d.draining {
			return ports.RawFrame{}, io.EOF
		}
		return ports.RawFrame{}, ports.ErrNeedMoreInput
	}

	k := d.queue[0]
	d.queue = d.queue[1:]

	w, h := d.spec.Width, d.spec.Height
	if s, ok := d.Sizes[k]; ok {
		w, h = s[0], s[1]
	}
	stride := w + 2
	plane := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			plane[y*stride+x] = FramePixel(k, x, y)
		}
	}
	return ports.RawFrame{
		Width:   w,
		Height:  h,
		Format:  ports.PixelFormatGray,
		Planes:  [][]byte{plane},
		Strides: []int{stride},
		PTS:     int64(k),
		Handle:  k,
	}, nil
}

func (d *Decoder) Drain() error {
	d.Drains++
	d.draining = true
	return nil
}

func (d *Decoder) Flush() {
	d.Flushes++
	d.queue = nil
	d.haveRef = false
	d.draining = false
}

func (d *Decoder) ConvertToBGR24(frame ports.RawFrame) ([]byte, error) {
	out, err := pixconv.ToBGR24(frame)
	if err != nil {
		return nil, err
	}
	if k, ok := frame.Handle.(int); ok && d.ShortFrames[k] {
		return out[:len(out)-1], nil
	}
	return out, nil
}

func (d *Decoder) Close() error {
	d.Closed = true
	return nil
}

var _ ports.Decoder = (*Decoder)(nil)
