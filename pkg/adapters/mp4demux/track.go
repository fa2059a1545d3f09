package mp4demux

import (
	"fmt"
	"io"
	"sort"

	"github.com/Eyevinn/mp4ff/hevc"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framegrab/pkg/adapters/codecdetect"
	"github.com/user/framegrab/pkg/ports"
)

// sampleIsNonSync is the sample_is_non_sync_sample bit of ISO/IEC 14496-12 sample flags.
const sampleIsNonSync = 1 << 16

// sample is one entry of the flattened sample table, in decode order.
type sample struct {
	// offset is the file position of the sample, -1 for fragmented data held in memory.
	offset int64
	size   uint32
	dts    int64
	pts    int64
	dur    uint32
	sync   bool
	data   []byte
}

// track is the flattened video track of an MP4 file.
type track struct {
	id        uint32
	codec     codecdetect.Codec
	timescale uint32
	width     int
	height    int
	duration  uint64
	samples   []sample

	// paramSets holds SPS and PPS in Annex B form, prepended to H.264 sync samples.
	paramSets []byte
}

func readTrack(mp4File *mp4.File, trak *mp4.TrakBox, r io.ReadSeeker) (*track, error) {
	t := &track{
		id:        trak.Tkhd.TrackID,
		codec:     codecdetect.CodecFromTrack(trak),
		timescale: 1000,
	}
	if trak.Mdia.Mdhd != nil {
		t.timescale = trak.Mdia.Mdhd.Timescale
		t.duration = trak.Mdia.Mdhd.Duration
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		vse, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok {
			continue
		}
		t.width = int(vse.Width)
		t.height = int(vse.Height)
		switch {
		case vse.AvcC != nil:
			t.paramSets = annexBParameterSets(vse.AvcC.SPSnalus, vse.AvcC.PPSnalus)
		case vse.HvcC != nil:
			t.paramSets = annexBParameterSets(
				vse.HvcC.GetNalusForType(hevc.NALU_VPS),
				vse.HvcC.GetNalusForType(hevc.NALU_SPS),
				vse.HvcC.GetNalusForType(hevc.NALU_PPS),
			)
		}
		break
	}

	var err error
	if mp4File.IsFragmented() || len(mp4File.Segments) > 0 {
		err = t.readFragments(mp4File)
	} else {
		err = t.readSampleTable(trak.Mdia.Minf.Stbl)
	}
	if err != nil {
		return nil, err
	}

	// Decode order is DTS order.
	sort.SliceStable(t.samples, func(i, j int) bool { return t.samples[i].dts < t.samples[j].dts })

	if end := t.endTime(); t.duration == 0 || uint64(end) > t.duration {
		t.duration = uint64(end)
	}
	return t, nil
}

// readSampleTable flattens the stbl of a progressive file.
func (t *track) readSampleTable(stbl *mp4.StblBox) error {
	if stbl.Stsz == nil || stbl.Stsc == nil {
		return fmt.Errorf("missing stsz or stsc box")
	}
	if stbl.Stco == nil && stbl.Co64 == nil {
		return fmt.Errorf("no stco or co64 box")
	}

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	count := stbl.Stsz.SampleNumber
	t.samples = make([]sample, 0, count)

	var offset uint64
	prevChunk := -1
	for nr := uint32(1); nr <= count; nr++ {
		chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
		if err != nil {
			return fmt.Errorf("sample %d: %w", nr, err)
		}
		if chunkNr != prevChunk {
			offset, err = chunkOffset(stbl, chunkNr)
			if err != nil {
				return fmt.Errorf("sample %d: %w", nr, err)
			}
			// Samples before this one in the same chunk.
			for s := uint32(firstInChunk); s < nr; s++ {
				offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
			}
			prevChunk = chunkNr
		}

		size := stbl.Stsz.GetSampleSize(int(nr))

		var dts uint64
		var dur uint32
		if stbl.Stts != nil {
			dts, dur = stbl.Stts.GetDecodeTime(nr)
		}
		pts := int64(dts)
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(nr))
		}

		t.samples = append(t.samples, sample{
			offset: int64(offset),
			size:   size,
			dts:    int64(dts),
			pts:    pts,
			dur:    dur,
			sync:   stbl.Stss == nil || syncSamples[nr],
		})
		offset += uint64(size)
	}
	return nil
}

func chunkOffset(stbl *mp4.StblBox, chunkNr int) (uint64, error) {
	if stbl.Stco != nil {
		off, err := stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, fmt.Errorf("get chunk offset: %w", err)
		}
		return off, nil
	}
	if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
		return 0, fmt.Errorf("chunk nr %d out of range", chunkNr)
	}
	return stbl.Co64.ChunkOffset[chunkNr-1], nil
}

// readFragments flattens the samples of every fragment of the track.
func (t *track) readFragments(mp4File *mp4.File) error {
	var trex *mp4.TrexBox
	if mp4File.Init != nil && mp4File.Init.Moov != nil && mp4File.Init.Moov.Mvex != nil {
		for _, tr := range mp4File.Init.Moov.Mvex.Trexs {
			if tr.TrackID == t.id {
				trex = tr
				break
			}
		}
	}

	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || !fragmentHasTrack(frag, t.id) {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				t.samples = append(t.samples, sample{
					offset: -1,
					size:   s.Size,
					dts:    int64(s.DecodeTime),
					pts:    int64(s.DecodeTime) + int64(s.CompositionTimeOffset),
					dur:    s.Dur,
					sync:   s.Flags&sampleIsNonSync == 0,
					data:   s.Data,
				})
			}
		}
	}
	return nil
}

func fragmentHasTrack(frag *mp4.Fragment, id uint32) bool {
	for _, traf := range frag.Moof.Trafs {
		if traf.Tfhd.TrackID == id {
			return true
		}
	}
	return false
}

// endTime returns the DTS at which the last sample ends.
func (t *track) endTime() int64 {
	var end int64
	for _, s := range t.samples {
		if e := s.dts + int64(s.dur); e > end {
			end = e
		}
	}
	return end
}

// sampleData returns the packet payload of s: Annex B with parameter sets
// on sync samples for H.264, the stored bytes otherwise.
func (t *track) sampleData(r io.ReadSeeker, s sample) ([]byte, error) {
	data := s.data
	if data == nil {
		data = make([]byte, s.size)
		if _, err := r.Seek(s.offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek to sample: %w", err)
		}
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("read sample: %w", err)
		}
	}

	if t.codec != codecdetect.CodecH264 && t.codec != codecdetect.CodecHEVC {
		return data, nil
	}
	annexB := avccToAnnexB(data)
	if !s.sync || len(t.paramSets) == 0 {
		return annexB, nil
	}
	out := make([]byte, 0, len(t.paramSets)+len(annexB))
	out = append(out, t.paramSets...)
	return append(out, annexB...), nil
}

// streamInfo derives stream metadata from the sample table.
func (t *track) streamInfo() ports.StreamInfo {
	info := ports.StreamInfo{
		Index:    int(t.id),
		Codec:    string(t.codec),
		Width:    t.width,
		Height:   t.height,
		Duration: int64(t.duration),
		TimeBase: ports.Rational{Num: 1, Den: int(t.timescale)},
	}
	if t.duration > 0 && len(t.samples) > 0 {
		info.AvgFrameRate = reduce(len(t.samples)*int(t.timescale), int(t.duration))
	}
	if dur := commonDuration(t.samples); dur > 0 {
		info.RFrameRate = reduce(int(t.timescale), int(dur))
	}
	return info
}

// commonDuration returns the most frequent sample duration.
func commonDuration(samples []sample) uint32 {
	counts := make(map[uint32]int)
	var best uint32
	for _, s := range samples {
		if s.dur == 0 {
			continue
		}
		counts[s.dur]++
		if counts[s.dur] > counts[best] || (counts[s.dur] == counts[best] && s.dur < best) {
			best = s.dur
		}
	}
	return best
}

func reduce(num, den int) ports.Rational {
	a, b := num, den
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return ports.Rational{Num: num, Den: den}
	}
	return ports.Rational{Num: num / a, Den: den / a}
}
