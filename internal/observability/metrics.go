package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	stages   *stageWindow

	ActiveCalls      prometheus.Gauge
	ActiveCaptures   prometheus.Gauge
	CallEvents       *prometheus.CounterVec
	Greetings        *prometheus.CounterVec
	Transcriptions   *prometheus.CounterVec
	ReplyRequests    *prometheus.CounterVec
	ReplyLatency     prometheus.Histogram
	ScheduledCalls   *prometheus.CounterVec
	Speech           *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	WorkerRejections prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stages:   newStageWindow(256),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of tracked calls that have not ended.",
		}),
		ActiveCaptures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_captures",
			Help:      "Number of running audio capture sessions.",
		}),
		CallEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Telephony call events by direction and state.",
		}, []string{"direction", "state"}),
		Greetings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "greetings_total",
			Help:      "Automatic greetings by call kind and the path that produced the text.",
		}, []string{"kind", "path"}),
		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Capture sessions by transcription source and outcome.",
		}, []string{"source", "outcome"}),
		ReplyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_requests_total",
			Help:      "Reply generator requests by outcome.",
		}, []string{"outcome"}),
		ReplyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_ms",
			Help:      "Reply generator round trip in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}),
		ScheduledCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_calls_total",
			Help:      "Deferred call lifecycle events.",
		}, []string{"event"}),
		Speech: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_total",
			Help:      "Speak requests by outcome.",
		}, []string{"outcome"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		WorkerRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_rejections_total",
			Help:      "Background tasks dropped because the worker pool was saturated.",
		}),
	}
}

func (m *Metrics) ObserveCallEvent(direction, state string) {
	if m == nil {
		return
	}
	m.CallEvents.WithLabelValues(direction, state).Inc()
}

func (m *Metrics) ObserveGreeting(kind, path string) {
	if m == nil {
		return
	}
	m.Greetings.WithLabelValues(kind, path).Inc()
}

func (m *Metrics) ObserveTranscription(source, outcome string) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveReply(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReplyRequests.WithLabelValues(outcome).Inc()
	m.ReplyLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe("reply_generate", float64(d.Milliseconds()))
}

func (m *Metrics) ObserveScheduled(event string) {
	if m == nil {
		return
	}
	m.ScheduledCalls.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveSpeech(outcome string) {
	if m == nil {
		return
	}
	m.Speech.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveWorkerRejection() {
	if m == nil {
		return
	}
	m.WorkerRejections.Inc()
}

func (m *Metrics) SetActiveCalls(n int) {
	if m == nil {
		return
	}
	m.ActiveCalls.Set(float64(n))
}

func (m *Metrics) AddActiveCaptures(delta float64) {
	if m == nil {
		return
	}
	m.ActiveCaptures.Add(delta)
}

// ObserveStage records a latency sample for the /v1/perf/latency window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.stages.Snapshot()
}

// Handler serves this registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
