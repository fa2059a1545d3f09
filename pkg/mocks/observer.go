package mocks

import (
	"sync"

	"github.com/user/framegrab/pkg/ports"
)

// Observer is a mock implementation of ports.Observer that records events.
type Observer struct {
	mu sync.Mutex

	Accesses      []AccessEvent
	Seeks         []SeekEvent
	DecodedFrames []int
	IndexBuilds   int
	Keyframes     int
	Packets       int
}

// AccessEvent records one ObserveAccess call.
type AccessEvent struct {
	Path    ports.AccessPath
	Outcome ports.Outcome
}

// SeekEvent records one ObserveSeek call.
type SeekEvent struct {
	Attempts int
	OK       bool
}

func (o *Observer) ObserveAccess(path ports.AccessPath, outcome ports.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Accesses = append(o.Accesses, AccessEvent{Path: path, Outcome: outcome})
}

func (o *Observer) ObserveSeek(attempts int, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Seeks = append(o.Seeks, SeekEvent{Attempts: attempts, OK: ok})
}

func (o *Observer) ObserveDecodedFrames(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.DecodedFrames = append(o.DecodedFrames, n)
}

func (o *Observer) ObserveIndexBuild(keyframes, packets int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.IndexBuilds++
	o.Keyframes = keyframes
	o.Packets = packets
}

// LastAccess returns the most recent access event.
func (o *Observer) LastAccess() AccessEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Accesses) == 0 {
		return AccessEvent{}
	}
	return o.Accesses[len(o.Accesses)-1]
}

var _ ports.Observer = (*Observer)(nil)
