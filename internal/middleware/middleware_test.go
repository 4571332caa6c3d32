package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"strava-activity-mapper/internal/metrics"
)

func TestWrapHandlerRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := WrapHandler(metrics.EndpointHealth, logger, func(w http.ResponseWriter, r *http.Request) {
		if RequestID(r.Context()) == "" {
			t.Error("Expected request ID in context")
		}
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(metrics.EndpointHealth, "418"))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(metrics.EndpointHealth, "418"))
	if after != before+1 {
		t.Errorf("Expected request counter to increase by 1, got %v -> %v", before, after)
	}

	id := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Expected UUID request ID, got %q", id)
	}
	if !strings.Contains(buf.String(), `"request_id":"`+id+`"`) {
		t.Errorf("Expected request ID in log line, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"status":418`) {
		t.Errorf("Expected status in log line, got %s", buf.String())
	}
}

func TestLoggingMiddlewareKeepsIncomingID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	incoming := uuid.NewString()

	var seen string
	h := WrapHandler(metrics.EndpointDashboard, logger, func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != incoming {
		t.Errorf("Expected request ID %s, got %s", incoming, seen)
	}

	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if seen == "not-a-uuid" {
		t.Error("Expected malformed request ID to be replaced")
	}
}

func TestResponseWriterDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrap(rec)
	rw.Write([]byte("OK"))
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rw.statusCode)
	}
	if wrap(rw) != rw {
		t.Error("Expected wrap to reuse an existing wrapper")
	}
}
