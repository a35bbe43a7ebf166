// Package metrics holds the prometheus collectors of the live client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livevoice"

var (
	// FramesSent counts outbound blobs accepted by the session, by kind (audio, video).
	FramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound media frames handed to the session",
		},
		[]string{"kind"},
	)

	// FramesDropped counts outbound frames dropped before send.
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound media frames dropped before send",
		},
		[]string{"kind", "reason"}, // reason: muted, disabled, backpressure, closed, encode
	)

	ChunksScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_scheduled_total",
			Help:      "Inbound audio chunks scheduled for playback",
		},
	)

	ChunksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Inbound audio chunks dropped",
		},
		[]string{"reason"}, // reason: decode, output, closed
	)

	Interruptions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Playback interruptions that stopped at least one source",
		},
	)

	// Sessions counts session starts by result (open, error, closed).
	Sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Live sessions by outcome",
		},
		[]string{"result"},
	)

	SessionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_open",
			Help:      "1 while a live session is open",
		},
	)

	DeviceFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_fallbacks_total",
			Help:      "Failed device acquisition attempts by request",
		},
		[]string{"request"},
	)

	OneShots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oneshot_toggles_total",
			Help:      "One-shot playback toggles by result",
		},
		[]string{"result"},
	)
)

var allMetrics = []prometheus.Collector{
	FramesSent,
	FramesDropped,
	ChunksScheduled,
	ChunksDropped,
	Interruptions,
	Sessions,
	SessionOpen,
	DeviceFallbacks,
	OneShots,
}

// NewRegistry registers every collector plus the Go runtime ones.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
