package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/observability"
)

const namespace = "viewgraph"

// Metrics collects prometheus metrics for the server. It implements the
// observability hook interfaces so the pipeline and cache report into it
// once registered with [Metrics.Register].
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	httpErrors      *prometheus.CounterVec

	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	layoutSize    *prometheus.HistogramVec

	cacheEvents *prometheus.CounterVec
	cacheBytes  *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry, together with
// the standard process and Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Requests that failed before a response was written.",
		}, []string{"method", "route"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"stage", "engine"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "errors_total",
			Help:      "Pipeline failures by stage and error code.",
		}, []string{"stage", "code"}),
		layoutSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "layout_vertices",
			Help:      "Number of vertices handed to the layout engine.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		}, []string{"engine"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Response cache hits, misses, writes and errors.",
		}, []string{"key_type", "event"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the response cache.",
		}, []string{"key_type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.inFlight,
		m.httpErrors,
		m.stageDuration,
		m.stageErrors,
		m.layoutSize,
		m.cacheEvents,
		m.cacheBytes,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Register installs m as the process-wide pipeline and cache hooks.
func (m *Metrics) Register() {
	observability.SetPipelineHooks(m)
	observability.SetCacheHooks(m)
}

// =============================================================================
// Pipeline hooks
// =============================================================================

func (m *Metrics) OnParseComplete(_ context.Context, _ int, d time.Duration, err error) {
	m.stage("parse", "", d, err)
}

func (m *Metrics) OnBuildComplete(_ context.Context, _, _ int, d time.Duration, err error) {
	m.stage("build", "", d, err)
}

func (m *Metrics) OnLayoutStart(_ context.Context, engine string, vertices int) {
	m.layoutSize.WithLabelValues(engine).Observe(float64(vertices))
}

func (m *Metrics) OnLayoutComplete(_ context.Context, engine string, d time.Duration, err error) {
	m.stage("layout", engine, d, err)
}

func (m *Metrics) OnFlattenComplete(_ context.Context, _ int, d time.Duration, err error) {
	m.stage("flatten", "", d, err)
}

func (m *Metrics) stage(name, engine string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(name, engine).Observe(d.Seconds())
	if err != nil {
		code := string(verrors.GetCode(err))
		if code == "" {
			code = "UNKNOWN"
		}
		m.stageErrors.WithLabelValues(name, code).Inc()
	}
}

// =============================================================================
// Cache hooks
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnCacheError(_ context.Context, keyType, op string, _ error) {
	m.cacheEvents.WithLabelValues(keyType, op+"_error").Inc()
}

// =============================================================================
// HTTP hooks
// =============================================================================

// OnRequest counts a request as in flight. path is the matched route pattern.
func (m *Metrics) OnRequest(context.Context, string, string, string) {
	m.inFlight.Inc()
}

func (m *Metrics) OnResponse(_ context.Context, method, _, path string, status int, d time.Duration) {
	m.inFlight.Dec()
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, method, _, path string, _ error) {
	m.inFlight.Dec()
	m.httpErrors.WithLabelValues(method, path).Inc()
}

// Ensure Metrics implements the hook interfaces.
var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)
