package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricHTTPRequestsTotal   = "mall_admin_http_requests_total"
	MetricHTTPRequestDuration = "mall_admin_http_request_duration_seconds"
	MetricAuthExpiryTotal     = "mall_admin_auth_expiry_total"
	MetricCacheLookupsTotal   = "mall_admin_cache_lookups_total"
)

// Request outcomes recorded by the pipeline
const (
	OutcomeOK        = "ok"
	OutcomeBusiness  = "business_error"
	OutcomeTransport = "transport_error"
	OutcomeMalformed = "malformed"
)

// Cache lookup results
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupShared = "shared"
	LookupError  = "error"
)

// Metrics owns a private registry with every console metric.
// A nil *Metrics is valid and records nothing.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authExpiry      prometheus.Counter
	cacheLookups    *prometheus.CounterVec

	mu     sync.Mutex
	server *http.Server
}

// NewMetrics creates and registers the console metrics on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "Calls made through the HTTP pipeline by outcome",
		}, []string{"method", "endpoint", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "Latency of calls made through the HTTP pipeline",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		authExpiry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAuthExpiryTotal,
			Help: "Times the session-expired flow cleared the session",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCacheLookupsTotal,
			Help: "Query cache lookups by result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.authExpiry, m.cacheLookups)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest records one pipeline call
func (m *Metrics) RecordRequest(method, endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, endpoint, outcome).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// RecordAuthExpiry counts a completed session-expired flow
func (m *Metrics) RecordAuthExpiry() {
	if m == nil {
		return
	}
	m.authExpiry.Inc()
}

// RecordCacheLookup counts a cache lookup
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr until Stop is called. It returns the bound
// address, which differs from addr when addr uses port 0.
func (m *Metrics) Serve(addr string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return "", errors.New("metrics server already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("starting metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server := m.server
	go func() {
		_ = server.Serve(ln)
	}()
	return ln.Addr().String(), nil
}

// Stop shuts the metrics listener down
func (m *Metrics) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return nil
	}
	err := m.server.Shutdown(ctx)
	m.server = nil
	return err
}
