package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clockbridge/clockbridge/internal/device"
	"github.com/clockbridge/clockbridge/internal/metrics"
	"github.com/clockbridge/clockbridge/internal/service"
	"github.com/clockbridge/clockbridge/internal/testutil"
)

// envelope mirrors model.Envelope with raw data so tests can inspect null vs [].
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func newTestService(dev *testutil.FakeDevice, recorder metrics.Recorder) *service.AttendanceService {
	gateway := device.NewGateway(device.GatewayConfig{
		Dialer:  dev,
		Addr:    "192.168.1.240:8818",
		Timeout: time.Second,
		Metrics: recorder,
		Logger:  testutil.DiscardLogger(),
	})
	return service.NewAttendanceService(gateway, time.UTC, recorder)
}

func TestHandler_Index(t *testing.T) {
	t.Parallel()
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.Index(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("expected success true")
	}
	if env.Message != "clockbridge "+Version {
		t.Errorf("unexpected message: %s", env.Message)
	}

	var routes []string
	if err := json.Unmarshal(env.Data, &routes); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(routes) != 3 {
		t.Errorf("expected 3 routes, got %v", routes)
	}
}

func TestHandler_NotFound(t *testing.T) {
	t.Parallel()
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	if env.Success || env.Message != "resource not found" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if env.Data != nil {
		t.Errorf("data must be omitted on failure, got %s", env.Data)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	h := New()

	req := httptest.NewRequest(http.MethodPost, "/attendance", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	if env.Success || env.Message != "method not allowed" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	recorder.IncDeviceSession(metrics.OutcomeSuccess)
	recorder.IncDeviceSession(metrics.OutcomeConnectFailed)
	recorder.AddRecordsServed(7)

	h := NewMetricsHandler(recorder)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	h.Metrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`clockbridge_device_sessions_total{outcome="success"} 1`,
		`clockbridge_device_sessions_total{outcome="connect_failed"} 1`,
		`clockbridge_records_served_total 7`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	t.Parallel()

	h := NewMetricsHandler(nil)
	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}

func TestWriteJSON_EncodeFailureKeepsStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}
