package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framegrab/pkg/keyframes"
	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/ports"
)

var hundredFrames = mocks.StreamSpec{Frames: 100, Keyframes: []int{0, 30, 60, 90}}

func openTest(t *testing.T, spec mocks.StreamSpec, configure func(c *mocks.Container), opts Options) (*Extractor, *mocks.Container) {
	t.Helper()
	capability := &mocks.Capability{Spec: spec, Configure: configure}
	x, err := Open(capability, "synthetic.ts", opts)
	require.NoError(t, err)
	t.Cleanup(func() { x.Close() })
	require.Len(t, capability.Containers, 1)
	return x, capability.Containers[0]
}

func TestOpen_Metadata(t *testing.T) {
	obs := &mocks.Observer{}
	x, _ := openTest(t, hundredFrames, nil, Options{Observer: obs})

	assert.Equal(t, 100, x.TotalFrames())
	assert.Equal(t, 100, x.PacketFrameCount())
	assert.Equal(t, 25.0, x.FrameRate())
	assert.InDelta(t, 4.0, x.Duration(), 1e-9)
	assert.Equal(t, []int{0, 30, 60, 90}, x.KeyframePositions())
	assert.Equal(t, AccessState{Mode: ModeIdle, Cursor: -1}, x.State())
	assert.Equal(t, 1, obs.IndexBuilds)
	assert.Equal(t, 4, obs.Keyframes)

	_, ok := x.FrameSize()
	assert.False(t, ok, "frame size is unknown before the first decode")
}

func TestOpen_Errors(t *testing.T) {
	t.Run("capability error", func(t *testing.T) {
		capability := &mocks.Capability{
			OpenFunc: func(string) (ports.Container, error) { return nil, ports.ErrNotFound },
		}
		_, err := Open(capability, "missing.ts", DefaultOptions())
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("rewind failure closes container", func(t *testing.T) {
		capability := &mocks.Capability{
			Spec: hundredFrames,
			Configure: func(c *mocks.Container) {
				c.SeekFunc = func(int64, bool) error { return errors.New("unseekable") }
			},
		}
		_, err := Open(capability, "pipe.ts", DefaultOptions())
		assert.ErrorIs(t, err, keyframes.ErrRewind)
		require.Len(t, capability.Containers, 1)
		assert.True(t, capability.Containers[0].Closed)
	})
}

func TestGetFrame_RandomAccessThenSequential(t *testing.T) {
	obs := &mocks.Observer{}
	x, c := openTest(t, hundredFrames, nil, Options{Observer: obs})
	seeksAfterOpen := len(c.SeekCalls)

	frame, err := x.GetFrame(45)
	require.NoError(t, err)
	require.False(t, frame.Empty())
	assert.Equal(t, mocks.ExpectedBGR(hundredFrames, 45), frame.Data)

	require.Len(t, c.SeekCalls, seeksAfterOpen+1)
	assert.Equal(t, mocks.SeekCall{Timestamp: 30, Backward: true}, c.SeekCalls[seeksAfterOpen])
	// The keyframe plus 15 frames after it.
	assert.Equal(t, []int{16}, obs.DecodedFrames)
	assert.Equal(t, AccessState{Mode: ModeSequential, Cursor: 45}, x.State())

	dec := c.Decoders[0]
	sentBefore := len(dec.Sent)

	frame, err = x.GetFrame(46)
	require.NoError(t, err)
	assert.Equal(t, mocks.ExpectedBGR(hundredFrames, 46), frame.Data)
	assert.Len(t, c.SeekCalls, seeksAfterOpen+1, "sequential read must not seek")
	assert.Equal(t, []int{46}, dec.Sent[sentBefore:])
	assert.Equal(t, []int{16, 1}, obs.DecodedFrames)
	assert.Equal(t, ports.AccessSequential, obs.LastAccess().Path)
	assert.Equal(t, AccessState{Mode: ModeSequential, Cursor: 46}, x.State())
}

func TestGetFrame_MetadataOverestimate(t *testing.T) {
	spec := mocks.StreamSpec{Frames: 98, AdvertisedFrames: 100, Keyframes: []int{0, 30, 60, 90}}
	x, _ := openTest(t, spec, nil, DefaultOptions())
	require.Equal(t, 100, x.TotalFrames())

	frame, err := x.GetFrame(99)
	require.NoError(t, err, "end of stream is an empty result, not an error")
	assert.True(t, frame.Empty())
	assert.Equal(t, EndOfStream, frame.Reason)
	assert.Equal(t, ModeIdle, x.State().Mode)

	frame, err = x.GetFrame(97)
	require.NoError(t, err)
	assert.Equal(t, mocks.ExpectedBGR(spec, 97), frame.Data)
}

func TestGetFrame_SeekFailure(t *testing.T) {
	obs := &mocks.Observer{}
	x, c := openTest(t, hundredFrames, func(c *mocks.Container) {
		c.SeekFunc = func(ts int64, _ bool) error {
			if ts == 30 {
				return errors.New("transient medium error")
			}
			return nil
		}
	}, Options{Observer: obs})
	seeksAfterOpen := len(c.SeekCalls)

	frame, err := x.GetFrame(45)
	assert.ErrorIs(t, err, ErrSeekFailed)
	assert.True(t, frame.Empty())
	assert.Len(t, c.SeekCalls, seeksAfterOpen+DefaultSeekRetryCount)
	assert.Equal(t, []mocks.SeekEvent{{Attempts: DefaultSeekRetryCount, OK: false}}, obs.Seeks)
	assert.Equal(t, ModeIdle, x.State().Mode)

	// Other keyframes are still reachable.
	frame, err = x.GetFrame(70)
	require.NoError(t, err)
	assert.Equal(t, mocks.ExpectedBGR(hundredFrames, 70), frame.Data)
}

func TestGetFrame_SeekRetrySucceeds(t *testing.T) {
	failures := 2
	obs := &mocks.Observer{}
	x, c := openTest(t, hundredFrames, func(c *mocks.Container) {
		c.SeekFunc = func(ts int64, _ bool) error {
			if ts == 60 && failures > 0 {
				failures--
				return errors.New("busy")
			}
			return nil
		}
	}, Options{Observer: obs, SeekRetryCount: 3})

	frame, err := x.GetFrame(61)
	require.NoError(t, err)
	assert.Equal(t, mocks.ExpectedBGR(hundredFrames, 61), frame.Data)
	assert.Equal(t, []mocks.SeekEvent{{Attempts: 3, OK: true}}, obs.Seeks)
	assert.Equal(t, 1, c.Decoders[0].Flushes)
}

func TestGetFrame_RetryCountIsConfigurable(t *testing.T) {
	x, c := openTest(t, hundredFrames, func(c *mocks.Container) {
		c.SeekFunc = func(ts int64, _ bool) error {
			if ts != 0 {
				return errors.New("bad sector")
			}
			return nil
		}
	}, Options{SeekRetryCount: 1})
	seeksAfterOpen := len(c.SeekCalls)

	_, err := x.GetFrame(31)
	assert.ErrorIs(t, err, ErrSeekFailed)
	assert.Len(t, c.SeekCalls, seeksAfterOpen+1)
}

func TestGetFrame_OutOfRange(t *testing.T) {
	x, c := openTest(t, hundredFrames, nil, DefaultOptions())

	check := func() {
		read := c.PacketsRead
		for _, n := range []int{100, 101, 1 << 20, -1} {
			_, err := x.GetFrame(n)
			assert.ErrorIs(t, err, ErrOutOfRange, "GetFrame(%d)", n)
		}
		assert.Equal(t, read, c.PacketsRead, "range errors must not touch the container")
	}

	check()

	_, err := x.GetFrame(99)
	require.NoError(t, err)
	require.Equal(t, ModeSequential, x.State().Mode)
	check()
}

func TestGetFrame_AllFramesFullSize(t *testing.T) {
	spec := mocks.StreamSpec{Frames: 100, Keyframes: []int{0, 30, 60, 90}, Width: 6, Height: 3}
	x, _ := openTest(t, spec, nil, DefaultOptions())

	// Jump around so every access path is used.
	order := []int{50, 10, 0, 1, 2, 99, 98, 31, 32, 33, 75, 0}
	for n := 0; n < 100; n += 7 {
		order = append(order, n)
	}
	for _, n := range order {
		frame, err := x.GetFrame(n)
		require.NoError(t, err)
		require.False(t, frame.Empty(), "frame %d", n)
		assert.Len(t, frame.Data, 6*3*3, "frame %d", n)
		assert.Equal(t, FrameSize{Height: 3, Width: 6}, frame.Size)
		assert.Equal(t, mocks.ExpectedBGR(spec, n), frame.Data, "frame %d", n)
	}
}

func TestGetFrame_FrameZeroAfterAnyCall(t *testing.T) {
	for _, first := range []int{0, 1, 45, 99} {
		x, c := openTest(t, hundredFrames, nil, DefaultOptions())
		_, err := x.GetFrame(first)
		require.NoError(t, err)
		seeks := len(c.SeekCalls)

		frame, err := x.GetFrame(0)
		require.NoError(t, err)
		assert.Equal(t, mocks.ExpectedBGR(hundredFrames, 0), frame.Data, "after %d", first)
		assert.Equal(t, AccessState{Mode: ModeSequential, Cursor: 0}, x.State())
		assert.Equal(t, mocks.SeekCall{Timestamp: 0, Backward: true}, c.SeekCalls[len(c.SeekCalls)-1])
		assert.Greater(t, len(c.SeekCalls), seeks, "frame 0 always rewinds")
	}
}

func TestGetFrame_FrameZeroRewindFailure(t *testing.T) {
	fail := false
	x, _ := openTest(t, hundredFrames, func(c *mocks.Container) {
		c.SeekFunc = func(int64, bool) error {
			if fail {
				return errors.New("rewind refused")
			}
			return nil
		}
	}, DefaultOptions())
	fail = true

	frame, err := x.GetFrame(0)
	require.NoError(t, err)
	assert.True(t, frame.Empty())
	assert.Equal(t, RewindFailed, frame.Reason)
	assert.Equal(t, ModeIdle, x.State().Mode)
}

func TestGetFrame_DecodePathIndependence(t *testing.T) {
	for _, delay := range []int{0, 2} {
		setup := func(c *mocks.Container) {
			c.DecoderSetup = func(d *mocks.Decoder) { d.Delay = delay }
		}
		spec := mocks.StreamSpec{Frames: 100, KeyframeEvery: 12, AudioEvery: 5}

		seq, _ := openTest(t, spec, setup, DefaultOptions())
		var sequential [][]byte
		for n := 0; n < 100; n++ {
			frame, err := seq.GetFrame(n)
			require.NoError(t, err)
			require.False(t, frame.Empty(), "delay %d frame %d", delay, n)
			sequential = append(sequential, frame.Data)
		}

		for _, k := range []int{1, 29, 36, 37, 64, 99} {
			random, _ := openTest(t, spec, setup, DefaultOptions())
			frame, err := random.GetFrame(k)
			require.NoError(t, err)
			assert.Equal(t, sequential[k], frame.Data, "delay %d frame %d", delay, k)
		}
	}
}

func TestGetFrame_FrameSizeStable(t *testing.T) {
	x, _ := openTest(t, hundredFrames, nil, DefaultOptions())

	_, err := x.GetFrame(10)
	require.NoError(t, err)
	first, ok := x.FrameSize()
	require.True(t, ok)

	_, err = x.GetFrame(80)
	require.NoError(t, err)
	second, ok := x.FrameSize()
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, FrameSize{Height: 4, Width: 8}, first)
}

func TestGetFrame_SequentialFailureFallsBackToSeek(t *testing.T) {
	x, c := openTest(t, hundredFrames, nil, DefaultOptions())

	_, err := x.GetFrame(45)
	require.NoError(t, err)
	seeks := len(c.SeekCalls)

	c.ReadPacketFunc = func() (ports.Packet, error) {
		c.ReadPacketFunc = nil
		return ports.Packet{}, errors.New("short read")
	}

	frame, err := x.GetFrame(46)
	require.NoError(t, err)
	assert.Equal(t, mocks.ExpectedBGR(hundredFrames, 46), frame.Data)
	require.Len(t, c.SeekCalls, seeks+1)
	assert.Equal(t, int64(30), c.SeekCalls[seeks].Timestamp)
	assert.Equal(t, AccessState{Mode: ModeSequential, Cursor: 46}, x.State())
}

func TestGetFrame_DecodeErrorsAreEmptyResults(t *testing.T) {
	x, c := openTest(t, hundredFrames, func(c *mocks.Container) {
		c.DecoderSetup = func(d *mocks.Decoder) {
			d.FailFrames = map[int]bool{40: true}
			d.ShortFrames = map[int]bool{70: true}
		}
	}, DefaultOptions())

	frame, err := x.GetFrame(45)
	require.NoError(t, err)
	assert.True(t, frame.Empty())
	assert.Equal(t, DecodeFailed, frame.Reason)
	assert.Equal(t, ModeIdle, x.State().Mode)

	frame, err = x.GetFrame(70)
	require.NoError(t, err)
	assert.True(t, frame.Empty(), "a short buffer is never returned")
	assert.Nil(t, frame.Data)
	assert.Equal(t, DecodeFailed, frame.Reason)

	// The engine stays usable.
	frame, err = x.GetFrame(65)
	require.NoError(t, err)
	assert.Equal(t, mocks.ExpectedBGR(hundredFrames, 65), frame.Data)
	assert.Len(t, c.Decoders, 1)
}

func TestGetFrame_NoKeyframe(t *testing.T) {
	spec := mocks.StreamSpec{Frames: 100, Keyframes: []int{10, 50}}
	x, _ := openTest(t, spec, nil, DefaultOptions())
	require.Equal(t, []int{10, 50}, x.KeyframePositions())

	frame, err := x.GetFrame(5)
	require.NoError(t, err)
	assert.True(t, frame.Empty())
	assert.Equal(t, NoKeyframe, frame.Reason)

	frame, err = x.GetFrame(12)
	require.NoError(t, err)
	assert.Equal(t, mocks.ExpectedBGR(spec, 12), frame.Data)
}

func TestGetFrame_DecoderInitFailure(t *testing.T) {
	x, _ := openTest(t, hundredFrames, func(c *mocks.Container) {
		c.NewDecoderFunc = func() (ports.Decoder, error) {
			return nil, ports.ErrUnsupportedCodec
		}
	}, DefaultOptions())

	_, err := x.GetFrame(3)
	assert.ErrorIs(t, err, ErrDecoderInit)
}

func TestGetFrame_FrameCountFromPackets(t *testing.T) {
	spec := mocks.StreamSpec{Frames: 98, AdvertisedFrames: 100}
	x, _ := openTest(t, spec, nil, Options{FrameCountSource: FrameCountFromPackets})

	assert.Equal(t, 98, x.TotalFrames())
	_, err := x.GetFrame(98)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestGetFrame_FlushesAfterEverySeek(t *testing.T) {
	x, c := openTest(t, hundredFrames, nil, DefaultOptions())

	for _, n := range []int{45, 0, 75, 10} {
		_, err := x.GetFrame(n)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, c.Decoders[0].Flushes)
}

func TestClose(t *testing.T) {
	capability := &mocks.Capability{Spec: hundredFrames}
	x, err := Open(capability, "synthetic.ts", DefaultOptions())
	require.NoError(t, err)

	_, err = x.GetFrame(1)
	require.NoError(t, err)

	require.NoError(t, x.Close())
	require.NoError(t, x.Close())

	c := capability.Containers[0]
	assert.True(t, c.Closed)
	assert.True(t, c.Decoders[0].Closed)
	assert.Equal(t, ModeIdle, x.State().Mode)

	_, err = x.GetFrame(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTransition(t *testing.T) {
	seq := func(n int) AccessState { return AccessState{Mode: ModeSequential, Cursor: n} }
	random := AccessState{Mode: ModeRandomAccess, Cursor: -1}

	tests := []struct {
		name  string
		from  AccessState
		event event
		want  AccessState
	}{
		{"idle seek", idleState, event{kind: eventSeek}, random},
		{"sequential seek", seq(4), event{kind: eventSeek}, random},
		{"random delivered", random, event{kind: eventDelivered, frame: 45}, seq(45)},
		{"sequential delivered", seq(45), event{kind: eventDelivered, frame: 46}, seq(46)},
		{"sequential miss", seq(45), event{kind: eventSequentialMiss}, idleState},
		{"random miss", random, event{kind: eventMiss}, idleState},
		{"close", seq(3), event{kind: eventClose}, idleState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transition(tt.from, tt.event))
		})
	}
}

func TestAccessState_CanContinue(t *testing.T) {
	s := AccessState{Mode: ModeSequential, Cursor: 9}
	assert.True(t, s.canContinue(10))
	assert.False(t, s.canContinue(9))
	assert.False(t, s.canContinue(11))
	assert.False(t, idleState.canContinue(0))
	assert.Equal(t, "sequential(9)", s.String())
	assert.Equal(t, "idle", idleState.String())
}
