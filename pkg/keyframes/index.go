// Package keyframes builds and queries the sparse keyframe index used for
// random access into a compressed video stream.
package keyframes

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/user/framegrab/pkg/ports"
)

// DefaultMinInterval is the default minimum distance, in frames, between
// two indexed keyframes.
const DefaultMinInterval = 30

// ErrRewind is returned when the container cannot be reset to its start
// before or after the index scan. Such a stream is unusable for random access.
var ErrRewind = errors.New("keyframes: rewind to stream start failed")

// Entry is one indexed keyframe.
type Entry struct {
	FrameIndex int
	PTS        int64
	DTS        int64
	IsKeyframe bool
	// Pos is the byte position of the keyframe packet, -1 when unknown.
	Pos int64
}

// Index is an immutable mapping from frame index to keyframe entry,
// ordered by FrameIndex.
type Index struct {
	entries []Entry
}

// newIndex creates an index from entries, sorted by frame index. The slice
// is copied.
func newIndex(entries []Entry) *Index {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FrameIndex < sorted[j].FrameIndex
	})
	return &Index{entries: sorted}
}

// Len returns the number of indexed keyframes.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Floor returns the entry with the greatest frame index <= target.
func (ix *Index) Floor(target int) (Entry, bool) {
	// First entry strictly greater than target.
	i := sort.Search(len(ix.entries), func(i int) bool {
		return ix.entries[i].FrameIndex > target
	})
	if i == 0 {
		return Entry{}, false
	}
	return ix.entries[i-1], true
}

// Positions returns the indexed frame numbers in ascending order.
func (ix *Index) Positions() []int {
	positions := make([]int, len(ix.entries))
	for i, e := range ix.entries {
		positions[i] = e.FrameIndex
	}
	return positions
}

// Result is the outcome of one index scan.
type Result struct {
	Index *Index

	// FrameCount is derived from stream duration and base frame rate. It may
	// disagree with PacketFrames; the two are not reconciled.
	FrameCount int

	// PacketFrames counts the video packets that carried a valid PTS.
	PacketFrames int

	// Packets counts every video packet seen during the scan.
	Packets int
}

// Build scans every packet of the selected stream once, from the start of
// the container to its end, and rewinds the container afterwards.
func Build(c ports.Container, minInterval int, log ports.Logger) (Result, error) {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	stream := c.VideoStream()

	log.Info("Building keyframe index")

	if err := c.Seek(0, true); err != nil {
		log.Error("Error seeking to beginning of file: %v", err)
		return Result{}, fmt.Errorf("%w: %v", ErrRewind, err)
	}

	var (
		entries    []Entry
		frameIdx   int
		packets    int
		lastKeyIdx = -minInterval
	)

	for {
		pkt, err := c.ReadPacket()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("Index scan stopped early: %v", err)
			}
			break
		}
		if pkt.StreamIndex != stream.Index {
			continue
		}
		packets++

		if pkt.Keyframe && frameIdx-lastKeyIdx >= minInterval {
			entries = append(entries, Entry{
				FrameIndex: frameIdx,
				PTS:        pkt.PTS,
				DTS:        pkt.DTS,
				IsKeyframe: true,
				Pos:        pkt.Pos,
			})
			lastKeyIdx = frameIdx
		}
		if pkt.HasPTS() {
			frameIdx++
		}
	}

	frameCount := metadataFrameCount(stream)

	log.Info("Indexed %d keyframes in %d total frames", len(entries), frameCount)
	if frameCount != frameIdx {
		log.Debug("Packet-derived frame count %d differs from metadata count %d", frameIdx, frameCount)
	}

	if err := c.Seek(0, true); err != nil {
		log.Error("Error seeking back to beginning of file: %v", err)
		return Result{}, fmt.Errorf("%w: %v", ErrRewind, err)
	}

	return Result{
		Index:        newIndex(entries),
		FrameCount:   frameCount,
		PacketFrames: frameIdx,
		Packets:      packets,
	}, nil
}

// metadataFrameCount returns floor(duration seconds * base frame rate),
// computed on the rationals so exact values do not round down.
func metadataFrameCount(s ports.StreamInfo) int {
	num := new(big.Int).SetInt64(s.Duration)
	num.Mul(num, big.NewInt(int64(s.TimeBase.Num)))
	num.Mul(num, big.NewInt(int64(s.RFrameRate.Num)))
	den := big.NewInt(int64(s.TimeBase.Den) * int64(s.RFrameRate.Den))
	if den.Sign() <= 0 || num.Sign() <= 0 {
		return 0
	}
	return int(num.Quo(num, den).Int64())
}
