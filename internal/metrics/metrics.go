package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kokoro_diary"

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNotFound = "not_found"
	OutcomeSkipped  = "skipped"
	OutcomeTimeout  = "timeout"
	OutcomeUnauth   = "unauthorized"
	OutcomePanic    = "panic"
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
)

// Recorder owns a private registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	analysisTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	lookupTotal      *prometheus.CounterVec
	lookupDuration   *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	circuitOpen      *prometheus.GaugeVec
	cacheTotal       *prometheus.CounterVec
	quotaUsed        prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		analysisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Diary analysis calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Diary analysis latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider"}),
		lookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "music_lookups_total",
			Help:      "Music lookups by service and outcome.",
		}, []string{"service", "outcome"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "music_lookup_duration_seconds",
			Help:      "Music lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Request lifecycle transitions by target phase.",
		}, []string{"phase"}),
		circuitOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_open",
			Help:      "1 while the named circuit breaker is not closed.",
		}, []string{"breaker"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_cache_total",
			Help:      "Lookup cache reads by kind and outcome.",
		}, []string{"kind", "outcome"}),
		quotaUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "youtube_quota_used_units",
			Help:      "YouTube Data API units consumed in the current quota day.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.analysisTotal,
		r.analysisDuration,
		r.lookupTotal,
		r.lookupDuration,
		r.transitions,
		r.circuitOpen,
		r.cacheTotal,
		r.quotaUsed,
	)

	return r
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveAnalysis(provider, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.analysisTotal.WithLabelValues(provider, outcome).Inc()
	r.analysisDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveLookup(service, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.lookupTotal.WithLabelValues(service, outcome).Inc()
	if outcome != OutcomeSkipped {
		r.lookupDuration.WithLabelValues(service).Observe(elapsed.Seconds())
	}
}

func (r *Recorder) ObserveTransition(phase string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(phase).Inc()
}

func (r *Recorder) SetCircuitOpen(breaker string, open bool) {
	if r == nil {
		return
	}
	value := 0.0
	if open {
		value = 1
	}
	r.circuitOpen.WithLabelValues(breaker).Set(value)
}

func (r *Recorder) ObserveCache(kind, outcome string) {
	if r == nil {
		return
	}
	r.cacheTotal.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) SetQuotaUsed(units int) {
	if r == nil {
		return
	}
	r.quotaUsed.Set(float64(units))
}
