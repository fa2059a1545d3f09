// Package grabber adapts the extractor to a frame grabber contract:
// grayscale frames at 16-bit depth plus size and rate metadata.
package grabber

import (
	"errors"
	"fmt"
	"image"

	"github.com/user/framegrab/pkg/adapters/logger"
	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/pixconv"
	"github.com/user/framegrab/pkg/ports"
)

var (
	// ErrNotInitialized is returned by frame and metadata access before Initialize.
	ErrNotInitialized = errors.New("grabber: not initialized")

	// ErrSetupFailed wraps any failure during Initialize.
	ErrSetupFailed = errors.New("grabber: setup failed")
)

// CameraType classifies the sensor that recorded the stream.
type CameraType string

const (
	CameraCooled   CameraType = "cooled"
	CameraUncooled CameraType = "uncooled"
)

// UnknownCameraModel is reported when no model has been set.
const UnknownCameraModel = "unknown"

// uncooledModel is the camera model recorded without sensor cooling.
const uncooledModel = "GF77"

// Option configures a Grabber.
type Option func(*Grabber)

// WithConvertTo16Bit selects x257 scaling (true, the default) or plain
// widening (false) of 8-bit samples.
func WithConvertTo16Bit(enabled bool) Option {
	return func(g *Grabber) { g.convertTo16 = enabled }
}

// WithExtractorOptions sets the options used to open the extractor.
func WithExtractorOptions(opts extractor.Options) Option {
	return func(g *Grabber) { g.extractorOpts = opts }
}

// WithLogger sets the logger.
func WithLogger(log ports.Logger) Option {
	return func(g *Grabber) { g.log = log }
}

// Grabber serves grayscale frames from one video file.
type Grabber struct {
	capability    ports.DecodeCapability
	path          string
	convertTo16   bool
	extractorOpts extractor.Options
	log           ports.Logger

	x           *extractor.Extractor
	initialized bool
	size        extractor.FrameSize
	frameRate   float64
	frames      int

	cameraModel string
	cameraType  CameraType
}

// New creates a grabber for path. Call Initialize before reading frames.
func New(capability ports.DecodeCapability, path string, opts ...Option) *Grabber {
	g := &Grabber{
		capability:    capability,
		path:          path,
		convertTo16:   true,
		extractorOpts: extractor.DefaultOptions(),
		log:           logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithComponent("grabber")
	if g.extractorOpts.Logger == nil {
		g.extractorOpts.Logger = g.log
	}
	return g
}

// Initialize opens the stream and decodes frame 0 to learn the frame size.
func (g *Grabber) Initialize() error {
	if g.initialized {
		return nil
	}
	g.log.Info("Initializing grabber for %s", g.path)

	x, err := extractor.Open(g.capability, g.path, g.extractorOpts)
	if err != nil {
		g.log.Error("Failed to initialize grabber: %v", err)
		return fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	if x.TotalFrames() > 0 {
		if _, err := x.GetFrame(0); err != nil {
			x.Close()
			g.log.Error("Failed to initialize grabber: %v", err)
			return fmt.Errorf("%w: %w", ErrSetupFailed, err)
		}
	}
	size, ok := x.FrameSize()
	if !ok {
		x.Close()
		g.log.Error("Failed to initialize grabber: frame size unavailable")
		return fmt.Errorf("%w: could not determine frame size", ErrSetupFailed)
	}

	g.x = x
	g.size = size
	g.frameRate = x.FrameRate()
	g.frames = x.TotalFrames()
	g.initialized = true

	g.log.Info("Grabber ready: %dx%d, %d frames at %.3f fps", size.Width, size.Height, g.frames, g.frameRate)
	return nil
}

// FrameSize returns the frame height and width.
func (g *Grabber) FrameSize() (height, width int, err error) {
	if !g.initialized {
		return 0, 0, ErrNotInitialized
	}
	return g.size.Height, g.size.Width, nil
}

// NumberOfFrames returns the number of addressable frames.
func (g *Grabber) NumberOfFrames() (int, error) {
	if !g.initialized {
		return 0, ErrNotInitialized
	}
	return g.frames, nil
}

// FrameRate returns the frame rate cached at setup.
func (g *Grabber) FrameRate() (float64, error) {
	if !g.initialized {
		return 0, ErrNotInitialized
	}
	return g.frameRate, nil
}

// KeyframePositions returns the indexed keyframes of the stream.
func (g *Grabber) KeyframePositions() ([]int, error) {
	if !g.initialized {
		return nil, ErrNotInitialized
	}
	return g.x.KeyframePositions(), nil
}

// Frame returns frame index as height*width 16-bit gray samples. An empty
// slice means the frame is not available.
func (g *Grabber) Frame(index int) ([]uint16, error) {
	samples, _, err := g.gray16(index)
	return samples, err
}

// Image returns frame index as a 16-bit grayscale image, or nil when the
// frame is not available. The image has the size of the decoded frame.
func (g *Grabber) Image(index int) (*image.Gray16, error) {
	samples, size, err := g.gray16(index)
	if err != nil || len(samples) == 0 {
		return nil, err
	}
	return pixconv.Gray16Image(samples, size.Width, size.Height)
}

// gray16 decodes frame index and returns its samples with the size they
// were converted at.
func (g *Grabber) gray16(index int) ([]uint16, extractor.FrameSize, error) {
	if !g.initialized {
		return nil, extractor.FrameSize{}, ErrNotInitialized
	}

	frame, err := g.x.GetFrame(index)
	if err != nil {
		return nil, extractor.FrameSize{}, err
	}
	if frame.Empty() {
		g.log.Debug("Frame %d unavailable: %s", index, frame.Reason)
		return []uint16{}, extractor.FrameSize{}, nil
	}

	gray, err := pixconv.BGRToGray(frame.Data, frame.Size.Width, frame.Size.Height)
	if err != nil {
		return nil, extractor.FrameSize{}, err
	}
	return pixconv.GrayTo16(gray, g.convertTo16), frame.Size, nil
}

// TypeForModel returns the camera type a model implies.
func TypeForModel(model string) CameraType {
	if model == uncooledModel {
		return CameraUncooled
	}
	return CameraCooled
}

// ParseCameraType validates a camera type name. The empty string is
// accepted and means "derive from the model".
func ParseCameraType(s string) (CameraType, error) {
	switch t := CameraType(s); t {
	case "", CameraCooled, CameraUncooled:
		return t, nil
	default:
		return "", fmt.Errorf("grabber: unknown camera type %q", s)
	}
}

// SetCameraModel records the camera model and derives the camera type.
func (g *Grabber) SetCameraModel(model string) {
	g.cameraModel = model
	g.cameraType = TypeForModel(model)
}

// CameraModel returns the camera model, or UnknownCameraModel.
func (g *Grabber) CameraModel() string {
	if g.cameraModel == "" {
		return UnknownCameraModel
	}
	return g.cameraModel
}

// SetCameraType overrides the derived camera type.
func (g *Grabber) SetCameraType(t CameraType) {
	g.cameraType = t
}

// CameraType returns the camera type. Without a model or override it is cooled.
func (g *Grabber) CameraType() CameraType {
	if g.cameraType == "" {
		return CameraCooled
	}
	return g.cameraType
}

// Close releases the underlying extractor.
func (g *Grabber) Close() error {
	if g.x == nil {
		return nil
	}
	err := g.x.Close()
	g.x = nil
	g.initialized = false
	return err
}
