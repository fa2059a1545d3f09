// Package ffmpegdecoder decodes H.264 and HEVC elementary streams with an
// external ffmpeg process. Annex B packets are written to its stdin and
// frames are read back from its stdout as a PPM image stream.
package ffmpegdecoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/user/framegrab/pkg/pixconv"
	"github.com/user/framegrab/pkg/ports"
)

var (
	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("ffmpegdecoder: ffmpeg not found in PATH")

	// ErrDecodeFailed is returned when the ffmpeg process fails or exits early.
	ErrDecodeFailed = errors.New("ffmpegdecoder: decode failed")

	// ErrDrained is returned by SendPacket after Drain and before Flush.
	ErrDrained = errors.New("ffmpegdecoder: decoder drained")

	// ErrClosed is returned by calls on a closed decoder.
	ErrClosed = errors.New("ffmpegdecoder: decoder closed")
)

const (
	// DefaultMaxLag is how many packets may be outstanding before
	// ReceiveFrame waits for ffmpeg to catch up.
	DefaultMaxLag = 24

	// DefaultLagWait bounds one such wait.
	DefaultLagWait = 2 * time.Second
)

// Options configures decoders created by NewFactory.
type Options struct {
	// FFmpegPath overrides the ffmpeg lookup when set.
	FFmpegPath string
	MaxLag     int
	LagWait    time.Duration
}

// New creates a decoder for stream with default options. It satisfies
// ports.DecoderFactory.
func New(stream ports.StreamInfo) (ports.Decoder, error) {
	return NewFactory(Options{})(stream)
}

// NewFactory returns a ports.DecoderFactory using opts.
func NewFactory(opts Options) ports.DecoderFactory {
	if opts.MaxLag <= 0 {
		opts.MaxLag = DefaultMaxLag
	}
	if opts.LagWait <= 0 {
		opts.LagWait = DefaultLagWait
	}
	return func(stream ports.StreamInfo) (ports.Decoder, error) {
		format, err := inputFormat(stream.Codec)
		if err != nil {
			return nil, err
		}

		path := opts.FFmpegPath
		if path == "" {
			path, err = FindFFmpeg()
			if err != nil {
				return nil, err
			}
		}

		return &Decoder{
			ffmpegPath: path,
			format:     format,
			maxLag:     opts.MaxLag,
			lagWait:    opts.LagWait,
		}, nil
	}
}

// Supports reports whether the decoder can read elementary streams of codec.
func Supports(codec string) bool {
	_, err := inputFormat(codec)
	return err == nil
}

func inputFormat(codec string) (string, error) {
	switch codec {
	case "h264":
		return "h264", nil
	case "hevc":
		return "hevc", nil
	default:
		return "", fmt.Errorf("%w: ffmpegdecoder cannot read %q", ports.ErrUnsupportedCodec, codec)
	}
}

// Decoder implements ports.Decoder on top of one ffmpeg process per decode
// run. The process starts on the first packet and is killed by Flush.
type Decoder struct {
	ffmpegPath string
	format     string
	maxLag     int
	lagWait    time.Duration

	proc     *process
	sent     int
	received int
	draining bool
	closed   bool
}

func (d *Decoder) SendPacket(pkt ports.Packet) error {
	if d.closed {
		return ErrClosed
	}
	if d.draining {
		return ErrDrained
	}
	if d.proc == nil {
		p, err := startProcess(d.ffmpegPath, d.format)
		if err != nil {
			return err
		}
		d.proc = p
	}
	if _, err := d.proc.stdin.Write(pkt.Data); err != nil {
		return fmt.Errorf("%w: write packet: %v", ErrDecodeFailed, err)
	}
	d.sent++
	return nil
}

func (d *Decoder) ReceiveFrame() (ports.RawFrame, error) {
	if d.closed {
		return ports.RawFrame{}, ErrClosed
	}
	if d.proc == nil {
		if d.draining {
			return ports.RawFrame{}, io.EOF
		}
		return ports.RawFrame{}, ports.ErrNeedMoreInput
	}

	p := d.proc
	for {
		frame, ok, done, err := p.pop()
		if ok {
			d.received++
			return frame, nil
		}
		if done {
			if err != nil {
				return ports.RawFrame{}, err
			}
			if d.draining {
				return ports.RawFrame{}, io.EOF
			}
			return ports.RawFrame{}, fmt.Errorf("%w: ffmpeg exited before end of input", ErrDecodeFailed)
		}

		if d.draining {
			<-p.notify
			continue
		}
		if d.sent-d.received > d.maxLag {
			select {
			case <-p.notify:
				continue
			case <-time.After(d.lagWait):
			}
		}
		return ports.RawFrame{}, ports.ErrNeedMoreInput
	}
}

func (d *Decoder) Drain() error {
	if d.closed {
		return ErrClosed
	}
	d.draining = true
	if d.proc == nil {
		return nil
	}
	if err := d.proc.stdin.Close(); err != nil {
		return fmt.Errorf("%w: close stdin: %v", ErrDecodeFailed, err)
	}
	return nil
}

func (d *Decoder) Flush() {
	if d.proc != nil {
		d.proc.kill()
		d.proc = nil
	}
	d.sent = 0
	d.received = 0
	d.draining = false
}

func (d *Decoder) ConvertToBGR24(frame ports.RawFrame) ([]byte, error) {
	return pixconv.ToBGR24(frame)
}

func (d *Decoder) Close() error {
	d.Flush()
	d.closed = true
	return nil
}

var _ ports.Decoder = (*Decoder)(nil)

// process is one running ffmpeg child. A reader goroutine parses its
// stdout into frames until the pipe closes.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	mu     sync.Mutex
	queue  []ports.RawFrame
	done   bool
	err    error
	killed bool

	notify chan struct{}
	exited chan struct{}
}

func startProcess(ffmpegPath, format string) (*process, error) {
	p := &process{
		notify: make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	p.cmd = exec.Command(ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-f", format,
		"-i", "pipe:0",
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-f", "image2pipe",
		"-c:v", "ppm",
		"pipe:1",
	)
	p.cmd.Stderr = &p.stderr

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	p.stdin = stdin

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrDecodeFailed, err)
	}

	go p.read(stdout)
	return p, nil
}

func (p *process) read(stdout io.Reader) {
	defer close(p.exited)

	r := newPPMReader(stdout)
	var readErr error
	for {
		frame, err := r.next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		p.mu.Lock()
		p.queue = append(p.queue, frame)
		p.mu.Unlock()
		p.signal()
	}
	// Unblock ffmpeg if it is still writing after a parse error.
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := p.cmd.Wait()

	p.mu.Lock()
	p.done = true
	switch {
	case p.killed:
	case readErr != nil:
		p.err = fmt.Errorf("%w: %v", ErrDecodeFailed, readErr)
	case waitErr != nil:
		p.err = fmt.Errorf("%w: %v\nstderr: %s", ErrDecodeFailed, waitErr, p.stderr.String())
	}
	p.mu.Unlock()
	p.signal()
}

func (p *process) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// pop returns the oldest queued frame. When the queue is empty it reports
// whether the process has finished and with which error.
func (p *process) pop() (frame ports.RawFrame, ok, done bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) > 0 {
		frame = p.queue[0]
		p.queue = p.queue[1:]
		return frame, true, false, nil
	}
	return ports.RawFrame{}, false, p.done, p.err
}

func (p *process) kill() {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.exited
}

// frameBytes is the RGB24 payload size of one PPM frame.
func frameBytes(width, height int) int {
	return width * height * 3
}

func atoiToken(tok string, what string) (int, error) {
	v, err := strconv.Atoi(tok)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("ppm: invalid %s %q", what, tok)
	}
	return v, nil
}
