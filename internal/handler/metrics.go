package handler

import (
	"fmt"
	"net/http"

	"github.com/clockbridge/clockbridge/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "clockbridge_device_sessions_total{outcome=\"%s\"} %d\n", metrics.OutcomeSuccess, snap.DeviceSessionsSuccess)
	writeMetric(w, "clockbridge_device_sessions_total{outcome=\"%s\"} %d\n", metrics.OutcomeConnectFailed, snap.DeviceSessionsConnectFailed)
	writeMetric(w, "clockbridge_device_sessions_total{outcome=\"%s\"} %d\n", metrics.OutcomeQueryFailed, snap.DeviceSessionsQueryFailed)
	writeMetric(w, "clockbridge_device_disconnect_errors_total %d\n", snap.DeviceDisconnectErrors)

	writeMetric(w, "clockbridge_device_query_duration_seconds_count %d\n", snap.DeviceQueryDurationCount)
	writeMetric(w, "clockbridge_device_query_duration_seconds_sum %.6f\n", float64(snap.DeviceQueryDurationTotalNs)/1e9)
	writeMetric(w, "clockbridge_device_lock_wait_seconds_count %d\n", snap.DeviceLockWaitCount)
	writeMetric(w, "clockbridge_device_lock_wait_seconds_sum %.6f\n", float64(snap.DeviceLockWaitTotalNs)/1e9)

	writeMetric(w, "clockbridge_requests_rejected_total %d\n", snap.RequestsRejected)
	writeMetric(w, "clockbridge_records_served_total %d\n", snap.RecordsServed)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
