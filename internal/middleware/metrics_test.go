package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsMiddleware_RecordsStatusAndLatency(t *testing.T) {
	m := newCountingMetrics()
	handler := NewMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/products", nil))

	if len(m.statuses) != 1 || m.statuses[0] != http.StatusCreated {
		t.Errorf("statuses = %v, want [201]", m.statuses)
	}
	if len(m.methods) != 1 || m.methods[0] != http.MethodPost {
		t.Errorf("methods = %v, want [POST]", m.methods)
	}
}

func TestMetricsMiddleware_ImplicitOK(t *testing.T) {
	m := newCountingMetrics()
	handler := NewMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(m.statuses) != 1 || m.statuses[0] != http.StatusOK {
		t.Errorf("statuses = %v, want [200]", m.statuses)
	}
}
