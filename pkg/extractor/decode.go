package extractor

import (
	"errors"
	"io"

	"github.com/user/framegrab/pkg/pixconv"
	"github.com/user/framegrab/pkg/ports"
)

// decodeUntil pulls frames from the decoder, feeding it packets of the
// selected stream as needed, until match accepts a frame. Decoded frames
// are numbered from start. The accepted frame is converted to BGR24 and
// returned as frame n; decoded is the number of frames taken from the
// decoder, including the accepted one.
func (x *Extractor) decodeUntil(n int, match func(counter int) bool, start int) (frame Frame, decoded int) {
	counter := start - 1
	eof := false

	for {
		raw, err := x.decoder.ReceiveFrame()
		switch {
		case err == nil:
			decoded++
			counter++
			if match(counter) {
				return x.convert(n, raw), decoded
			}
			continue
		case errors.Is(err, io.EOF):
			return emptyFrame(n, EndOfStream), decoded
		case errors.Is(err, ports.ErrNeedMoreInput):
			if eof {
				return emptyFrame(n, EndOfStream), decoded
			}
		default:
			x.log.Warn("Error receiving frame: %v", err)
			return emptyFrame(n, DecodeFailed), decoded
		}

		pkt, err := x.container.ReadPacket()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				x.log.Warn("Error reading packet: %v", err)
			}
			eof = true
			if err := x.decoder.Drain(); err != nil {
				x.log.Warn("Error draining decoder: %v", err)
				return emptyFrame(n, DecodeFailed), decoded
			}
			continue
		}
		if pkt.StreamIndex != x.stream.Index {
			continue
		}
		if err := x.decoder.SendPacket(pkt); err != nil {
			x.log.Warn("Error sending packet to decoder: %v", err)
			return emptyFrame(n, DecodeFailed), decoded
		}
	}
}

// convert turns a raw frame into a tightly packed BGR24 frame. A buffer of
// any other length is rejected.
func (x *Extractor) convert(n int, raw ports.RawFrame) Frame {
	buf, err := x.decoder.ConvertToBGR24(raw)
	if err != nil {
		x.log.Warn("Error converting frame %d: %v", n, err)
		return emptyFrame(n, DecodeFailed)
	}
	if want := pixconv.BGRSize(raw.Width, raw.Height); raw.Width <= 0 || raw.Height <= 0 || len(buf) != want {
		x.log.Warn("Converted frame %d has %d bytes, want %d", n, len(buf), want)
		return emptyFrame(n, DecodeFailed)
	}

	size := FrameSize{Height: raw.Height, Width: raw.Width}
	if x.frameSize == nil {
		x.frameSize = &size
		x.log.Info("Frame size: %dx%d", size.Width, size.Height)
	} else if *x.frameSize != size {
		x.log.Warn("Frame %d is %dx%d, stream size is %dx%d", n, size.Width, size.Height, x.frameSize.Width, x.frameSize.Height)
	}

	return Frame{Index: n, Size: size, Data: buf}
}
