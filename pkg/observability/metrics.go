package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the SSO client.
type Metrics struct {
	// Outbound HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Token lifecycle
	TokenRefreshTotal    *prometheus.CounterVec
	TokenRefreshDuration prometheus.Histogram
	RequestRetriesTotal  prometheus.Counter
	SessionClearsTotal   *prometheus.CounterVec

	// Session persistence
	PersistOperationsTotal *prometheus.CounterVec

	// Search
	SearchFetchesTotal   *prometheus.CounterVec
	SearchStaleDiscarded prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on registry.
// A nil registry gets a fresh private one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoadmin_http_requests_total",
				Help: "Total number of outbound API requests",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssoadmin_http_request_duration_seconds",
				Help:    "Outbound API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoadmin_token_refresh_total",
				Help: "Token refresh calls by result",
			},
			[]string{"result"},
		),
		TokenRefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ssoadmin_token_refresh_duration_seconds",
				Help:    "Token refresh duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		RequestRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ssoadmin_request_retries_total",
				Help: "Requests replayed after a 401",
			},
		),
		SessionClearsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoadmin_session_clears_total",
				Help: "Local session resets by reason",
			},
			[]string{"reason"},
		),
		PersistOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoadmin_session_persist_operations_total",
				Help: "Session persistence operations",
			},
			[]string{"operation", "status"},
		),
		SearchFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssoadmin_search_fetches_total",
				Help: "Search controller fetches by kind and status",
			},
			[]string{"kind", "status"},
		),
		SearchStaleDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ssoadmin_search_stale_responses_total",
				Help: "Search responses discarded because a newer query was dispatched",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenRefreshTotal,
		m.TokenRefreshDuration,
		m.RequestRetriesTotal,
		m.SessionClearsTotal,
		m.PersistOperationsTotal,
		m.SearchFetchesTotal,
		m.SearchStaleDiscarded,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one outbound round trip.
func (m *Metrics) RecordHTTPRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	m.HTTPRequestsTotal.WithLabelValues(method, statusLabel).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRefresh records a refresh call outcome.
func (m *Metrics) RecordRefresh(err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.TokenRefreshTotal.WithLabelValues(result).Inc()
	m.TokenRefreshDuration.Observe(duration.Seconds())
}

// RecordRetry counts a replayed request.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.RequestRetriesTotal.Inc()
}

// RecordSessionClear counts a local logout.
func (m *Metrics) RecordSessionClear(reason string) {
	if m == nil {
		return
	}
	m.SessionClearsTotal.WithLabelValues(reason).Inc()
}

// RecordPersist counts a persister call.
func (m *Metrics) RecordPersist(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PersistOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSearchFetch counts a search controller fetch.
func (m *Metrics) RecordSearchFetch(kind string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SearchFetchesTotal.WithLabelValues(kind, status).Inc()
}

// RecordStaleDiscard counts a response dropped by the generation check.
func (m *Metrics) RecordStaleDiscard() {
	if m == nil {
		return
	}
	m.SearchStaleDiscarded.Inc()
}
