package tts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the speaker's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	queueDepth      prometheus.Gauge
	playbacks       prometheus.Counter
	playbackSeconds prometheus.Histogram
	loads           *prometheus.CounterVec
	loadLatency     prometheus.Histogram
	state           *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ttspeaker_requests_total",
			Help: "Speak requests retired, by outcome",
		}, []string{"outcome"}),
		requestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttspeaker_request_duration_seconds",
			Help:    "Time from request creation to retirement",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "ttspeaker_queue_depth",
			Help: "Requests waiting behind the speaking slot",
		}),
		playbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "ttspeaker_playbacks_total",
			Help: "Clips handed to the audio player",
		}),
		playbackSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttspeaker_playback_seconds",
			Help:    "Unpaused playback time per clip",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ttspeaker_clip_loads_total",
			Help: "Clip loads, by source",
		}, []string{"source"}),
		loadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ttspeaker_clip_load_seconds",
			Help:    "Clip load latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ttspeaker_controller_state",
			Help: "1 for the playback controller's current state, 0 otherwise",
		}, []string{"state"}),
	}
}

// ObserveLoad records one clip load. Source is "memory", "disk",
// "synth", "error" or "cancelled".
func (m *Metrics) ObserveLoad(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(source).Inc()
	m.loadLatency.Observe(d.Seconds())
}

func (m *Metrics) observeOutcome(outcome EventKind, created, now time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome.String()).Inc()
	m.requestDuration.Observe(now.Sub(created).Seconds())
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) observePlaybackStart() {
	if m == nil {
		return
	}
	m.playbacks.Inc()
}

func (m *Metrics) observePlayback(d time.Duration) {
	if m == nil {
		return
	}
	m.playbackSeconds.Observe(d.Seconds())
}

func (m *Metrics) setState(state StateType) {
	if m == nil {
		return
	}
	for _, s := range []StateType{StateIdle, StateWaitingForLoad, StateSpeaking, StatePaused} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}
