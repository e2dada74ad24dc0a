package model

import "time"

// Device operations recorded in the query audit log.
const (
	OperationAttendance = "attendance"
	OperationUsers      = "users"
)

// QueryRun describes one device query attempt.
// It never carries the fetched records, only metadata about the exchange.
type QueryRun struct {
	ID          string    `json:"id"` // ULID (time-sortable)
	Operation   string    `json:"operation"`
	DeviceAddr  string    `json:"device_addr"`
	RecordCount int       `json:"record_count"`
	DurationMS  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// Succeeded reports whether the run completed without error.
func (q *QueryRun) Succeeded() bool {
	return q.Error == ""
}
