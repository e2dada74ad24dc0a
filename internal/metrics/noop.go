package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncDeviceSession is a no-op.
func (n *NoopRecorder) IncDeviceSession(outcome string) {}

// IncDeviceDisconnectError is a no-op.
func (n *NoopRecorder) IncDeviceDisconnectError() {}

// ObserveDeviceQueryDuration is a no-op.
func (n *NoopRecorder) ObserveDeviceQueryDuration(duration time.Duration) {}

// ObserveDeviceLockWait is a no-op.
func (n *NoopRecorder) ObserveDeviceLockWait(duration time.Duration) {}

// IncRequestRejected is a no-op.
func (n *NoopRecorder) IncRequestRejected() {}

// AddRecordsServed is a no-op.
func (n *NoopRecorder) AddRecordsServed(count int) {}
