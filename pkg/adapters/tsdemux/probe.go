package tsdemux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/asticode/go-astits"

	"github.com/user/framegrab/pkg/ports"
)

const packetSize = 188

// ptsWrap is the period of the 33-bit PES timestamps.
const ptsWrap = int64(1) << 33

// unwrapper extends 33-bit timestamps past wraparound by picking, for each
// raw value, the equivalent closest to the previous timestamp.
type unwrapper struct {
	last int64
	seen bool
}

func (w *unwrapper) unwrap(ts int64) int64 {
	if ts == ports.NoPTS {
		return ts
	}
	if !w.seen {
		w.last, w.seen = ts, true
		return ts
	}
	ts += w.last - w.last%ptsWrap
	switch {
	case ts-w.last > ptsWrap/2:
		ts -= ptsWrap
	case w.last-ts > ptsWrap/2:
		ts += ptsWrap
	}
	w.last = ts
	return ts
}

// unit is one PES unit of the video stream.
type unit struct {
	pts      int64
	dts      int64
	keyframe bool
	data     []byte
}

// unitFromPES converts demuxed PES data into a unit. Timestamps go through
// w so they keep increasing across wraparound.
func unitFromPES(d *astits.DemuxerData, codec string, w *unwrapper) unit {
	u := unit{pts: ports.NoPTS, dts: ports.NoPTS, data: d.PES.Data}
	if h := d.PES.Header; h != nil && h.OptionalHeader != nil {
		if h.OptionalHeader.PTS != nil {
			u.pts = h.OptionalHeader.PTS.Base
			u.dts = u.pts
		}
		if h.OptionalHeader.DTS != nil {
			u.dts = h.OptionalHeader.DTS.Base
		}
	}
	u.dts = w.unwrap(u.dts)
	u.pts = w.unwrap(u.pts)
	if d.FirstPacket != nil && d.FirstPacket.AdaptationField != nil && d.FirstPacket.AdaptationField.RandomAccessIndicator {
		u.keyframe = true
	} else {
		u.keyframe = containsRandomAccessPoint(u.data, codec)
	}
	return u
}

// containsRandomAccessPoint reports whether an Annex B access unit holds an
// IDR picture (H.264) or an IRAP picture (HEVC).
func containsRandomAccessPoint(data []byte, codec string) bool {
	for _, nalu := range avc.ExtractNalusFromByteStream(data) {
		if len(nalu) == 0 {
			continue
		}
		switch codec {
		case "h264":
			if avc.GetNaluType(nalu[0]) == avc.NALU_IDR {
				return true
			}
		case "hevc":
			// nal_unit_type 16..23 are IRAP pictures.
			if t := (nalu[0] >> 1) & 0x3f; t >= 16 && t <= 23 {
				return true
			}
		}
	}
	return false
}

// unitInfo is what probing keeps of each unit.
type unitInfo struct {
	pts      int64
	dts      int64
	keyframe bool
}

// probeResult describes the selected video stream of a transport stream.
type probeResult struct {
	pid    uint16
	codec  string
	width  int
	height int
	units  []unitInfo
}

// probe demuxes the whole stream once to select the video PID and collect
// unit timestamps, keyframes and the picture size.
func probe(r io.ReadSeeker) (*probeResult, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrOpenFailed, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dmx := astits.NewDemuxer(ctx, r, astits.DemuxerOptPacketSize(packetSize))

	p := &probeResult{}
	sawPMT := false
	var ts unwrapper
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break
			}
			if !sawPMT {
				return nil, fmt.Errorf("%w: %v", ports.ErrOpenFailed, err)
			}
			// A damaged tail still leaves the units read so far usable.
			break
		}

		if d.PMT != nil && !sawPMT {
			sawPMT = true
			for _, es := range d.PMT.ElementaryStreams {
				if codec := codecName(es.StreamType); codec != "" {
					p.pid = es.ElementaryPID
					p.codec = codec
					break
				}
			}
			if p.codec == "" {
				return nil, ports.ErrNoVideoStream
			}
			continue
		}

		if !sawPMT || d.PES == nil || d.PID != p.pid {
			continue
		}
		u := unitFromPES(d, p.codec, &ts)
		p.units = append(p.units, unitInfo{pts: u.pts, dts: u.dts, keyframe: u.keyframe})
		if p.width == 0 && p.codec == "h264" {
			p.width, p.height = h264Size(u.data)
		}
	}

	if !sawPMT {
		return nil, fmt.Errorf("%w: no program map table", ports.ErrOpenFailed)
	}
	return p, nil
}

// codecName maps a PMT stream type to a codec name, or "" for non-video streams.
func codecName(t astits.StreamType) string {
	switch t {
	case astits.StreamTypeH264Video:
		return "h264"
	case astits.StreamTypeH265Video:
		return "hevc"
	default:
		return ""
	}
}

// h264Size returns the picture size of the first SPS in an access unit.
func h264Size(data []byte) (width, height int) {
	for _, nalu := range avc.ExtractNalusFromByteStream(data) {
		if len(nalu) == 0 || avc.GetNaluType(nalu[0]) != avc.NALU_SPS {
			continue
		}
		sps, err := avc.ParseSPSNALUnit(nalu, false)
		if err != nil {
			return 0, 0
		}
		return int(sps.Width), int(sps.Height)
	}
	return 0, 0
}

// keyframeFor returns the ordinal of the keyframe unit to seek to.
func (p *probeResult) keyframeFor(timestamp int64, backward bool) (int, bool) {
	if backward {
		target := 0
		for i, u := range p.units {
			if u.keyframe && u.pts != ports.NoPTS && u.pts <= timestamp {
				target = i
			}
		}
		return target, true
	}
	for i, u := range p.units {
		if u.keyframe && u.pts != ports.NoPTS && u.pts >= timestamp {
			return i, true
		}
	}
	return 0, false
}

// streamInfo derives duration and rates from unit timestamps.
func (p *probeResult) streamInfo() ports.StreamInfo {
	info := ports.StreamInfo{
		Index:    int(p.pid),
		Codec:    p.codec,
		Width:    p.width,
		Height:   p.height,
		TimeBase: TimeBase,
	}

	var pts []int64
	for _, u := range p.units {
		if u.pts != ports.NoPTS {
			pts = append(pts, u.pts)
		}
	}
	if len(pts) < 2 {
		return info
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })

	frameDur := commonDelta(pts)
	if frameDur <= 0 {
		return info
	}
	info.Duration = pts[len(pts)-1] - pts[0] + frameDur
	info.RFrameRate = reduce(int64(TimeBase.Den), frameDur)
	info.AvgFrameRate = reduce(int64(len(pts))*int64(TimeBase.Den), info.Duration)
	return info
}

// commonDelta returns the most frequent positive difference between
// consecutive sorted timestamps.
func commonDelta(sorted []int64) int64 {
	counts := make(map[int64]int)
	var best int64
	for i := 1; i < len(sorted); i++ {
		d := sorted[i] - sorted[i-1]
		if d <= 0 {
			continue
		}
		counts[d]++
		if counts[d] > counts[best] || (counts[d] == counts[best] && d < best) {
			best = d
		}
	}
	return best
}

func reduce(num, den int64) ports.Rational {
	a, b := num, den
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return ports.Rational{Num: int(num), Den: int(den)}
	}
	return ports.Rational{Num: int(num / a), Den: int(den / a)}
}
