package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordAndExpose(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordHTTPRequest(http.MethodPost, "/send", http.StatusOK, 20*time.Millisecond)
	m.ObserveCompletion("success", time.Second)
	m.ObserveCompletion("error", time.Second)
	m.RecordExchange("ok")

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/send", "200")); got != 1 {
		t.Fatalf("expected 1 http request, got %v", got)
	}
	if got := testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed completion, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "chat_exchanges_total") {
		t.Fatalf("expected exposition to include chat_exchanges_total")
	}
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.ObserveCompletion("success", time.Millisecond)
	m.RecordExchange("ok")
}
