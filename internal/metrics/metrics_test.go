package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsRecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("GET", "/transactions", 200, 100*time.Millisecond)
	m.RecordRequest("GET", "/transactions", 200, 150*time.Millisecond)
	m.RecordRequest("GET", "/transactions", 500, 50*time.Millisecond)

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "edufinance_http_requests_total") {
		t.Error("expected edufinance_http_requests_total metric")
	}
	if !strings.Contains(body, "edufinance_http_request_duration_seconds") {
		t.Error("expected edufinance_http_request_duration_seconds metric")
	}
	if !strings.Contains(body, `class="500"`) {
		t.Errorf("expected a 500-class error counter, got:\n%s", body)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := New()

	time.Sleep(10 * time.Millisecond)

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if !strings.Contains(w.Body.String(), "edufinance_uptime_seconds") {
		t.Error("expected edufinance_uptime_seconds metric")
	}
}

func TestMetricsEndpointNormalization(t *testing.T) {
	m := New()

	// Numeric path segments collapse to one series.
	m.RecordRequest("DELETE", "/transactions/17", 200, 10*time.Millisecond)
	m.RecordRequest("DELETE", "/transactions/23", 200, 10*time.Millisecond)

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "/transactions/{id}") {
		t.Errorf("expected normalized endpoint /transactions/{id}, got:\n%s", body)
	}
	if !strings.Contains(body, `endpoint="/transactions/{id}",method="DELETE"} 2`) {
		t.Errorf("expected both requests under one series, got:\n%s", body)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	})

	wrapped := m.Middleware(handler)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsW := httptest.NewRecorder()
	m.Handler()(metricsW, metricsReq)

	if !strings.Contains(metricsW.Body.String(), "/auth/register") {
		t.Errorf("expected endpoint /auth/register in metrics, got:\n%s", metricsW.Body.String())
	}
}

func TestMetricsNamedCounter(t *testing.T) {
	m := New()

	m.IncCounter("auth_logins_total")
	m.IncCounter("auth_logins_total")
	m.IncCounter("auth_refreshes_total")

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "edufinance_auth_logins_total 2") {
		t.Errorf("expected auth_logins_total = 2, got:\n%s", body)
	}
	if !strings.Contains(body, "edufinance_auth_refreshes_total 1") {
		t.Errorf("expected auth_refreshes_total = 1, got:\n%s", body)
	}
}
