package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	DeviceSessionsSuccess       uint64
	DeviceSessionsConnectFailed uint64
	DeviceSessionsQueryFailed   uint64
	DeviceDisconnectErrors      uint64
	DeviceQueryDurationCount    uint64
	DeviceQueryDurationTotalNs  int64
	DeviceLockWaitCount         uint64
	DeviceLockWaitTotalNs       int64
	RequestsRejected            uint64
	RecordsServed               uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint.
type InMemoryRecorder struct {
	sessionsSuccess       uint64
	sessionsConnectFailed uint64
	sessionsQueryFailed   uint64
	disconnectErrors      uint64
	queryDurationCount    uint64
	queryDurationTotalNs  int64
	lockWaitCount         uint64
	lockWaitTotalNs       int64
	requestsRejected      uint64
	recordsServed         uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		DeviceSessionsSuccess:       atomic.LoadUint64(&m.sessionsSuccess),
		DeviceSessionsConnectFailed: atomic.LoadUint64(&m.sessionsConnectFailed),
		DeviceSessionsQueryFailed:   atomic.LoadUint64(&m.sessionsQueryFailed),
		DeviceDisconnectErrors:      atomic.LoadUint64(&m.disconnectErrors),
		DeviceQueryDurationCount:    atomic.LoadUint64(&m.queryDurationCount),
		DeviceQueryDurationTotalNs:  atomic.LoadInt64(&m.queryDurationTotalNs),
		DeviceLockWaitCount:         atomic.LoadUint64(&m.lockWaitCount),
		DeviceLockWaitTotalNs:       atomic.LoadInt64(&m.lockWaitTotalNs),
		RequestsRejected:            atomic.LoadUint64(&m.requestsRejected),
		RecordsServed:               atomic.LoadUint64(&m.recordsServed),
	}
}

// IncDeviceSession increments the counter for the given outcome.
// Unknown outcomes are ignored.
func (m *InMemoryRecorder) IncDeviceSession(outcome string) {
	switch outcome {
	case OutcomeSuccess:
		atomic.AddUint64(&m.sessionsSuccess, 1)
	case OutcomeConnectFailed:
		atomic.AddUint64(&m.sessionsConnectFailed, 1)
	case OutcomeQueryFailed:
		atomic.AddUint64(&m.sessionsQueryFailed, 1)
	}
}

// IncDeviceDisconnectError increments the failed teardown counter.
func (m *InMemoryRecorder) IncDeviceDisconnectError() {
	atomic.AddUint64(&m.disconnectErrors, 1)
}

// ObserveDeviceQueryDuration records how long a device session took end to end.
func (m *InMemoryRecorder) ObserveDeviceQueryDuration(duration time.Duration) {
	atomic.AddUint64(&m.queryDurationCount, 1)
	atomic.AddInt64(&m.queryDurationTotalNs, duration.Nanoseconds())
}

// ObserveDeviceLockWait records time spent waiting for exclusive device access.
func (m *InMemoryRecorder) ObserveDeviceLockWait(duration time.Duration) {
	atomic.AddUint64(&m.lockWaitCount, 1)
	atomic.AddInt64(&m.lockWaitTotalNs, duration.Nanoseconds())
}

// IncRequestRejected increments the counter of requests refused before reaching the device.
func (m *InMemoryRecorder) IncRequestRejected() {
	atomic.AddUint64(&m.requestsRejected, 1)
}

// AddRecordsServed adds n to the number of records returned to clients.
func (m *InMemoryRecorder) AddRecordsServed(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.recordsServed, uint64(n))
}
