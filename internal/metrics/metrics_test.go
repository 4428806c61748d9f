package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUpstream(t *testing.T) {
	m := New()

	m.ObserveUpstream("alchemy_getTokenBalances", OutcomeOK)
	m.ObserveUpstream("alchemy_getTokenBalances", OutcomeOK)
	m.ObserveUpstream("alchemy_getTokenMetadata", OutcomeError)

	if got := testutil.ToFloat64(m.upstreamRequests.WithLabelValues("alchemy_getTokenBalances", OutcomeOK)); got != 2 {
		t.Errorf("balances ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.upstreamRequests.WithLabelValues("alchemy_getTokenMetadata", OutcomeError)); got != 1 {
		t.Errorf("metadata error = %v, want 1", got)
	}
}

func TestObserveQueryAndInflight(t *testing.T) {
	m := New()

	m.ObserveQuery(OutcomeInvalid, 10*time.Millisecond)
	if got := testutil.ToFloat64(m.queries.WithLabelValues(OutcomeInvalid)); got != 1 {
		t.Errorf("queries invalid = %v, want 1", got)
	}

	m.MetadataStarted()
	m.MetadataStarted()
	m.MetadataFinished()
	if got := testutil.ToFloat64(m.metadataInflight); got != 1 {
		t.Errorf("inflight = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveUpstream("x", OutcomeOK)
	m.ObserveQuery(OutcomeOK, time.Second)
	m.MetadataStarted()
	m.MetadataFinished()
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveQuery(OutcomeOK, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tokenidx_queries_total") {
		t.Error("expected tokenidx_queries_total in exposition")
	}
}
