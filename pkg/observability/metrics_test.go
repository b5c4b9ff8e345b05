package observability

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordHTTPRequest(http.MethodGet, 200, 10*time.Millisecond)
	m.RecordRefresh(nil, time.Millisecond)
	m.RecordSessionClear("refresh_failed")

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ssoadmin_http_requests_total"])
	assert.True(t, names["ssoadmin_token_refresh_total"])
	assert.True(t, names["ssoadmin_session_clears_total"])
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(nil)

	m.RecordRefresh(nil, time.Millisecond)
	m.RecordRefresh(errors.New("expired"), time.Millisecond)
	m.RecordRefresh(errors.New("expired"), time.Millisecond)
	m.RecordRetry()
	m.RecordHTTPRequest(http.MethodPost, 0, time.Millisecond)
	m.RecordStaleDiscard()
	m.RecordSearchFetch("initial", nil)
	m.RecordPersist("save", errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokenRefreshTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestRetriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchStaleDiscarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFetchesTotal.WithLabelValues("initial", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistOperationsTotal.WithLabelValues("save", "error")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(http.MethodGet, 200, time.Second)
		m.RecordRefresh(nil, time.Second)
		m.RecordRetry()
		m.RecordSessionClear("logout")
		m.RecordPersist("load", nil)
		m.RecordSearchFetch("search", nil)
		m.RecordStaleDiscard()
	})
}
