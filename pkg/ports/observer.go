package ports

// AccessPath identifies how the extractor served a frame request.
type AccessPath string

const (
	AccessSequential AccessPath = "sequential"
	AccessFrameZero  AccessPath = "frame_zero"
	AccessRandom     AccessPath = "random"
)

// Outcome is the result class of a frame request.
type Outcome string

const (
	OutcomeFrame Outcome = "frame"
	OutcomeEmpty Outcome = "empty"
	OutcomeError Outcome = "error"
)

// Observer receives extractor events, typically to export metrics.
// Implementations must be cheap; they run on the caller's goroutine.
type Observer interface {
	// ObserveAccess records the path and outcome of one frame request.
	ObserveAccess(path AccessPath, outcome Outcome)

	// ObserveSeek records a keyframe seek and the attempts it took.
	ObserveSeek(attempts int, ok bool)

	// ObserveDecodedFrames records how many frames a request decoded.
	ObserveDecodedFrames(n int)

	// ObserveIndexBuild records the result of the keyframe index scan.
	ObserveIndexBuild(keyframes, packets int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) ObserveAccess(AccessPath, Outcome) {}
func (NopObserver) ObserveSeek(int, bool)             {}
func (NopObserver) ObserveDecodedFrames(int)          {}
func (NopObserver) ObserveIndexBuild(int, int)        {}

var _ Observer = NopObserver{}
