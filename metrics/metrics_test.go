package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Directive("tool")
	m.ParseFailure()
	m.Fallback("MCP disabled")
	m.ObserveCall("llm", time.Now())
	m.SessionStarted()(OutcomeAnswered, 2)
	assert.NotNil(t, m.Handler())
}

func TestCounters(t *testing.T) {
	m := New()
	m.Directive("retrieve")
	m.Directive("retrieve")
	m.Directive("final")
	m.ParseFailure()
	m.Fallback("RAG-only mode")

	done := m.SessionStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	done(OutcomeForced, 10)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Directives.WithLabelValues("retrieve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Directives.WithLabelValues("final")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("RAG-only mode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues(OutcomeForced)))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Directive("tool")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hybrid_directives_total{action="tool"} 1`)
}
