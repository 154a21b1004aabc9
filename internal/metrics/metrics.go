// Package metrics owns vidsum's prometheus collectors.
//
// Collectors live on a dedicated registry rather than the global default so
// tests and one-shot CLI runs can build as many as they like. Every method
// is safe on a nil *Registry, which disables recording.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidsum/internal/jobs"
)

const namespace = "vidsum"

// Registry bundles the collectors and the prometheus registry they live on.
type Registry struct {
	reg *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	summariesTotal  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	jobStatusGauges *jobStatusCollector
}

// StatsSource reports job counts per status at scrape time.
type StatsSource interface {
	Stats(ctx context.Context) (jobs.Stats, error)
}

// New registers all collectors. source may be nil when no job store is open.
func New(source StatsSource) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Pipeline runs by terminal outcome.",
		}, []string{"outcome"}),
		summariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Window summaries by result (ok, no_speech, unavailable).",
		}, []string{"result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s .. ~68min
		}, []string{"stage"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "path_pattern", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),
		jobStatusGauges: newJobStatusCollector(source),
	}
	r.reg.MustRegister(
		r.jobsTotal,
		r.summariesTotal,
		r.stageDuration,
		r.httpRequests,
		r.httpDuration,
		r.jobStatusGauges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry (for tests and custom exporters).
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler serves the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// ObserveJob counts one finished pipeline run.
func (r *Registry) ObserveJob(outcome string) {
	if r == nil {
		return
	}
	r.jobsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSummary counts one window summary result.
func (r *Registry) ObserveSummary(result string) {
	if r == nil {
		return
	}
	r.summariesTotal.WithLabelValues(result).Inc()
}

// ObserveStage records how long a stage ran.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// InstrumentHandler returns middleware that records HTTP request metrics.
// The chi route pattern is the path label so ids never become labels.
func (r *Registry) InstrumentHandler(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		pattern := ""
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		if pattern == "" {
			pattern = "unknown"
		}
		r.httpRequests.WithLabelValues(req.Method, pattern, strconv.Itoa(sw.status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
