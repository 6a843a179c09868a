package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// domain pipeline (report ingestion, pollers, known-hit derivation).
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	reportsIngested  *prometheus.CounterVec
	knownHitsDerived prometheus.Counter
	pollCycles       *prometheus.CounterVec
	pollErrors       *prometheus.CounterVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reconhub",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconhub",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	reportsIngested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconhub",
		Subsystem: "ingest",
		Name:      "reports_total",
		Help:      "Reports submitted for ingestion, by kind and outcome.",
	}, []string{"kind", "status"})

	knownHitsDerived := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reconhub",
		Subsystem: "ingest",
		Name:      "known_hits_derived_total",
		Help:      "Calibration rows derived from attack/spy report pairs.",
	})

	pollCycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconhub",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Completed poll cycles, by poller.",
	}, []string{"poller"})

	pollErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconhub",
		Subsystem: "poller",
		Name:      "errors_total",
		Help:      "Failed poll cycles, by poller.",
	}, []string{"poller"})

	for _, c := range []prometheus.Collector{
		requestDuration, requestTotal, reportsIngested,
		knownHitsDerived, pollCycles, pollErrors,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:         registry,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		reportsIngested:  reportsIngested,
		knownHitsDerived: knownHitsDerived,
		pollCycles:       pollCycles,
		pollErrors:       pollErrors,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ReportIngested records one ingestion attempt outcome. Status is one of
// "stored", "duplicate", "rejected", "error".
func (c *Collector) ReportIngested(kind, status string) {
	if c == nil {
		return
	}
	c.reportsIngested.WithLabelValues(kind, status).Inc()
}

// KnownHitDerived records one derived calibration row.
func (c *Collector) KnownHitDerived() {
	if c == nil {
		return
	}
	c.knownHitsDerived.Inc()
}

// PollCycle records one completed poll cycle for the named poller.
func (c *Collector) PollCycle(poller string) {
	if c == nil {
		return
	}
	c.pollCycles.WithLabelValues(poller).Inc()
}

// PollError records one failed poll cycle for the named poller.
func (c *Collector) PollError(poller string) {
	if c == nil {
		return
	}
	c.pollErrors.WithLabelValues(poller).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
