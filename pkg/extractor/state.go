package extractor

import "fmt"

// Mode is the access mode of the decode engine.
type Mode int

const (
	// ModeIdle means the container position is not tied to any frame.
	ModeIdle Mode = iota
	// ModeSequential means the next packet continues right after Cursor.
	ModeSequential
	// ModeRandomAccess is held while a seek and decode-forward is in progress.
	ModeRandomAccess
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSequential:
		return "sequential"
	case ModeRandomAccess:
		return "random_access"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// AccessState is the engine cursor. Cursor is the last delivered frame in
// ModeSequential and -1 otherwise.
type AccessState struct {
	Mode   Mode
	Cursor int
}

var idleState = AccessState{Mode: ModeIdle, Cursor: -1}

func (s AccessState) String() string {
	if s.Mode == ModeSequential {
		return fmt.Sprintf("sequential(%d)", s.Cursor)
	}
	return s.Mode.String()
}

// canContinue reports whether frame n can be served without seeking.
func (s AccessState) canContinue(n int) bool {
	return s.Mode == ModeSequential && n == s.Cursor+1
}

type eventKind int

const (
	// eventDelivered: a frame was produced and the container sits right after it.
	eventDelivered eventKind = iota
	// eventSequentialMiss: the fast path produced nothing.
	eventSequentialMiss
	// eventSeek: the container is about to be repositioned.
	eventSeek
	// eventMiss: a seek-based request produced nothing or failed.
	eventMiss
	eventClose
)

type event struct {
	kind  eventKind
	frame int
}

// transition is the only place AccessState changes.
func transition(s AccessState, e event) AccessState {
	switch e.kind {
	case eventDelivered:
		return AccessState{Mode: ModeSequential, Cursor: e.frame}
	case eventSeek:
		return AccessState{Mode: ModeRandomAccess, Cursor: -1}
	case eventSequentialMiss, eventMiss, eventClose:
		return idleState
	default:
		panic(fmt.Sprintf("extractor: unknown event %d in state %s", e.kind, s))
	}
}
