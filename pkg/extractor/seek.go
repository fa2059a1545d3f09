package extractor

import (
	"fmt"

	"github.com/user/framegrab/pkg/keyframes"
	"github.com/user/framegrab/pkg/ports"
)

// seekToKeyframe positions the container on the closest indexed keyframe at
// or before target. found is false when target precedes the first keyframe.
// Every attempt asks for the same timestamp; after SeekRetryCount failures
// the request fails with ErrSeekFailed.
func (x *Extractor) seekToKeyframe(target int) (entry keyframes.Entry, found bool, err error) {
	entry, found = x.index.Floor(target)
	if !found {
		return keyframes.Entry{}, false, nil
	}

	ts := entry.PTS
	if ts == ports.NoPTS {
		ts = entry.DTS
	}

	var lastErr error
	for attempt := 1; attempt <= x.opts.SeekRetryCount; attempt++ {
		lastErr = x.container.Seek(ts, true)
		if lastErr == nil {
			x.obs.ObserveSeek(attempt, true)
			x.decoder.Flush()
			return entry, true, nil
		}
		x.log.Warn("Seek to keyframe %d failed (attempt %d/%d): %v",
			entry.FrameIndex, attempt, x.opts.SeekRetryCount, lastErr)
	}

	x.obs.ObserveSeek(x.opts.SeekRetryCount, false)
	x.log.Error("Giving up seeking to keyframe %d for frame %d", entry.FrameIndex, target)
	return entry, true, fmt.Errorf("%w: keyframe %d (ts %d) after %d attempts: %v",
		ErrSeekFailed, entry.FrameIndex, ts, x.opts.SeekRetryCount, lastErr)
}
