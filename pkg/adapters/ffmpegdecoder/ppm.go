package ffmpegdecoder

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/user/framegrab/pkg/ports"
)

// ppmReader splits a concatenated stream of binary PPM (P6) images.
type ppmReader struct {
	r *bufio.Reader
}

func newPPMReader(r io.Reader) *ppmReader {
	return &ppmReader{r: bufio.NewReaderSize(r, 1<<16)}
}

// next returns the next image as an RGB24 frame. It returns io.EOF only
// when the stream ends cleanly between images.
func (p *ppmReader) next() (ports.RawFrame, error) {
	magic, err := p.token()
	if err != nil {
		return ports.RawFrame{}, err
	}
	if magic != "P6" {
		return ports.RawFrame{}, fmt.Errorf("ppm: unexpected magic %q", magic)
	}

	var fields [3]int
	for i, what := range []string{"width", "height", "maxval"} {
		tok, err := p.token()
		if err != nil {
			return ports.RawFrame{}, unexpected(err)
		}
		if fields[i], err = atoiToken(tok, what); err != nil {
			return ports.RawFrame{}, err
		}
	}
	width, height, maxval := fields[0], fields[1], fields[2]
	if maxval > 255 {
		return ports.RawFrame{}, fmt.Errorf("ppm: 16-bit samples not supported (maxval %d)", maxval)
	}

	pix := make([]byte, frameBytes(width, height))
	if _, err := io.ReadFull(p.r, pix); err != nil {
		return ports.RawFrame{}, unexpected(err)
	}

	return ports.RawFrame{
		Width:   width,
		Height:  height,
		Format:  ports.PixelFormatRGB24,
		Planes:  [][]byte{pix},
		Strides: []int{width * 3},
		PTS:     ports.NoPTS,
	}, nil
}

// token reads one whitespace-delimited header field, skipping comments.
// The single whitespace byte that ends the field is consumed.
func (p *ppmReader) token() (string, error) {
	var tok []byte
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			if len(tok) > 0 && errors.Is(err, io.EOF) {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case b == '#' && len(tok) == 0:
			if _, err := p.r.ReadBytes('\n'); err != nil {
				return "", unexpected(err)
			}
		case isSpace(b):
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
