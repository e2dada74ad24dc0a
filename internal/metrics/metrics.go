// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Device session outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeConnectFailed = "connect_failed"
	OutcomeQueryFailed   = "query_failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Device session metrics
	IncDeviceSession(outcome string) // outcome: one of the Outcome* constants
	IncDeviceDisconnectError()
	ObserveDeviceQueryDuration(duration time.Duration)
	ObserveDeviceLockWait(duration time.Duration)

	// HTTP surface metrics
	IncRequestRejected()
	AddRecordsServed(n int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
