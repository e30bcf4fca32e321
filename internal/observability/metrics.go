package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the reply pipeline.
type Metrics struct {
	Queries             *prometheus.CounterVec
	ProviderFallbacks   *prometheus.CounterVec
	ProviderErrors      *prometheus.CounterVec
	SynthesisChunks     *prometheus.CounterVec
	Concatenations      *prometheus.CounterVec
	ActiveVoiceSessions prometheus.Gauge
	QueueDepth          *prometheus.GaugeVec
	ReplyLatency        prometheus.Histogram
	SynthesisLatency    prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Queries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Dispatched queries by serving provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Fallback attempts after a primary provider failure.",
		}, []string{"primary"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and error kind.",
		}, []string{"provider", "kind"}),
		SynthesisChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_chunks_total",
			Help:      "Synthesized chunks by backend and outcome.",
		}, []string{"backend", "outcome"}),
		Concatenations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concatenations_total",
			Help:      "Audio concatenation attempts by outcome.",
		}, []string{"outcome"}),
		ActiveVoiceSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_voice_sessions",
			Help:      "Number of live voice sessions.",
		}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_queue_depth",
			Help:      "Queued playback entries per channel.",
		}, []string{"channel"}),
		ReplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_ms",
			Help:      "Latency of a full provider dispatch in milliseconds.",
			Buckets:   []float64{200, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}),
		SynthesisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Latency of a single chunk synthesis in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 5000, 10000, 20000},
		}),
	}
}

func (m *Metrics) ObserveReplyLatency(d time.Duration) {
	m.ReplyLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveSynthesisLatency(d time.Duration) {
	m.SynthesisLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
