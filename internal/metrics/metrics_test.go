package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodPost, "/api/transactions/borrow", http.StatusCreated, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/transactions/borrow", http.StatusConflict, 5*time.Millisecond)
	m.Circulation("borrow", OutcomeSuccess)
	m.Circulation("borrow", OutcomeUnavailable)
	m.Circulation("borrow", OutcomeUnavailable)

	assert.Equal(t, 1.0, counterValue(t, m, "library_http_requests_total", map[string]string{"status": "201"}))
	assert.Equal(t, 2.0, counterValue(t, m, "library_circulation_operations_total", map[string]string{"outcome": OutcomeUnavailable}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "library_circulation_operations_total"))
	assert.True(t, strings.Contains(rec.Body.String(), "library_http_request_duration_seconds_bucket"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.Circulation("return", OutcomeError)
	})
}

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}
