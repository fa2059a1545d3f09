// Package promobserver exports extractor events as Prometheus metrics.
package promobserver

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/framegrab/pkg/ports"
)

const namespace = "framegrab"

// Observer implements ports.Observer with Prometheus collectors.
type Observer struct {
	FrameRequests *prometheus.CounterVec
	Seeks         *prometheus.CounterVec
	SeekAttempts  prometheus.Histogram
	DecodedFrames prometheus.Histogram
	IndexBuilds   prometheus.Counter
	Keyframes     prometheus.Gauge
	Packets       prometheus.Gauge
}

// New creates an observer and registers its collectors on reg.
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		FrameRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_requests_total",
			Help:      "Frame requests by access path and outcome",
		}, []string{"path", "outcome"}),
		Seeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyframe_seeks_total",
			Help:      "Keyframe seeks by result",
		}, []string{"ok"}),
		SeekAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "keyframe_seek_attempts",
			Help:      "Attempts needed per keyframe seek",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}),
		DecodedFrames: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decoded_frames_per_request",
			Help:      "Frames decoded to serve one request",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
		}),
		IndexBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Keyframe index scans",
		}),
		Keyframes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_keyframes",
			Help:      "Keyframes in the most recent index",
		}),
		Packets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_packets",
			Help:      "Video packets seen by the most recent index scan",
		}),
	}

	for _, c := range []prometheus.Collector{
		o.FrameRequests, o.Seeks, o.SeekAttempts, o.DecodedFrames,
		o.IndexBuilds, o.Keyframes, o.Packets,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("promobserver: register: %w", err)
		}
	}
	return o, nil
}

func (o *Observer) ObserveAccess(path ports.AccessPath, outcome ports.Outcome) {
	o.FrameRequests.WithLabelValues(string(path), string(outcome)).Inc()
}

func (o *Observer) ObserveSeek(attempts int, ok bool) {
	o.Seeks.WithLabelValues(strconv.FormatBool(ok)).Inc()
	o.SeekAttempts.Observe(float64(attempts))
}

func (o *Observer) ObserveDecodedFrames(n int) {
	o.DecodedFrames.Observe(float64(n))
}

func (o *Observer) ObserveIndexBuild(keyframes, packets int) {
	o.IndexBuilds.Inc()
	o.Keyframes.Set(float64(keyframes))
	o.Packets.Set(float64(packets))
}

var _ ports.Observer = (*Observer)(nil)

// WriteTextfile writes all metrics gathered by g to path in the text
// exposition format, for a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("promobserver: write %s: %w", path, err)
	}
	return nil
}
