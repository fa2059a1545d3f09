package promobserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/ports"
)

func TestObserver_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := New(reg)
	require.NoError(t, err)

	o.ObserveAccess(ports.AccessRandom, ports.OutcomeFrame)
	o.ObserveAccess(ports.AccessRandom, ports.OutcomeFrame)
	o.ObserveAccess(ports.AccessSequential, ports.OutcomeEmpty)
	o.ObserveSeek(3, false)
	o.ObserveIndexBuild(4, 100)

	assert.Equal(t, 2.0, testutil.ToFloat64(o.FrameRequests.WithLabelValues("random", "frame")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.FrameRequests.WithLabelValues("sequential", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.Seeks.WithLabelValues("false")))
	assert.Equal(t, 4.0, testutil.ToFloat64(o.Keyframes))
	assert.Equal(t, 100.0, testutil.ToFloat64(o.Packets))
}

func TestObserver_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestObserver_WithExtractor(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := New(reg)
	require.NoError(t, err)

	capability := &mocks.Capability{Spec: mocks.StreamSpec{Frames: 100, Keyframes: []int{0, 30, 60, 90}}}
	x, err := extractor.Open(capability, "clip.ts", extractor.Options{Observer: o})
	require.NoError(t, err)
	defer x.Close()

	for _, n := range []int{45, 46, 47} {
		_, err := x.GetFrame(n)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(o.FrameRequests.WithLabelValues("random", "frame")))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.FrameRequests.WithLabelValues("sequential", "frame")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.Seeks.WithLabelValues("true")))
	assert.Equal(t, 1, testutil.CollectAndCount(o.DecodedFrames))

	path := filepath.Join(t.TempDir(), "framegrab.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "framegrab_frame_requests_total")
}
