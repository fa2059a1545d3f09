package mocks

import (
	"bytes"
	"io"

	"github.com/user/framegrab/pkg/pixconv"
	"github.com/user/framegrab/pkg/ports"
)

// PayloadDecoder is a ports.Decoder for demuxer tests. It turns every packet
// into a gray frame of the stream size filled with the packet's last byte,
// so fixtures can encode the frame number there.
type PayloadDecoder struct {
	stream  ports.StreamInfo
	pending []byte
	drained bool

	Sent int
}

// NewPayloadDecoder is a ports.DecoderFactory creating PayloadDecoders.
func NewPayloadDecoder(stream ports.StreamInfo) (ports.Decoder, error) {
	return &PayloadDecoder{stream: stream}, nil
}

func (d *PayloadDecoder) SendPacket(pkt ports.Packet) error {
	if len(pkt.Data) == 0 {
		return ErrMockDecode
	}
	d.Sent++
	d.pending = append(d.pending, pkt.Data[len(pkt.Data)-1])
	return nil
}

func (d *PayloadDecoder) ReceiveFrame() (ports.RawFrame, error) {
	if len(d.pending) == 0 {
		if d.drained {
			return ports.RawFrame{}, io.EOF
		}
		return ports.RawFrame{}, ports.ErrNeedMoreInput
	}
	v := d.pending[0]
	d.pending = d.pending[1:]

	w, h := d.stream.Width, d.stream.Height
	return ports.RawFrame{
		Width:   w,
		Height:  h,
		Format:  ports.PixelFormatGray,
		Planes:  [][]byte{bytes.Repeat([]byte{v}, w*h)},
		Strides: []int{w},
	}, nil
}

func (d *PayloadDecoder) Drain() error {
	d.drained = true
	return nil
}

func (d *PayloadDecoder) Flush() {
	d.pending = nil
	d.drained = false
}

func (d *PayloadDecoder) ConvertToBGR24(frame ports.RawFrame) ([]byte, error) {
	return pixconv.ToBGR24(frame)
}

func (d *PayloadDecoder) Close() error {
	return nil
}

var _ ports.Decoder = (*PayloadDecoder)(nil)
