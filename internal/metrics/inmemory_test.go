package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemory_DeviceSessionOutcomes(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncDeviceSession(OutcomeSuccess)
	m.IncDeviceSession(OutcomeSuccess)
	m.IncDeviceSession(OutcomeConnectFailed)
	m.IncDeviceSession(OutcomeQueryFailed)
	m.IncDeviceSession("unknown")

	snap := m.Snapshot()
	if snap.DeviceSessionsSuccess != 2 {
		t.Errorf("success = %d, want 2", snap.DeviceSessionsSuccess)
	}
	if snap.DeviceSessionsConnectFailed != 1 {
		t.Errorf("connect_failed = %d, want 1", snap.DeviceSessionsConnectFailed)
	}
	if snap.DeviceSessionsQueryFailed != 1 {
		t.Errorf("query_failed = %d, want 1", snap.DeviceSessionsQueryFailed)
	}
}

func TestInMemory_Durations(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.ObserveDeviceQueryDuration(150 * time.Millisecond)
	m.ObserveDeviceQueryDuration(50 * time.Millisecond)
	m.ObserveDeviceLockWait(time.Second)

	snap := m.Snapshot()
	if snap.DeviceQueryDurationCount != 2 {
		t.Errorf("query count = %d, want 2", snap.DeviceQueryDurationCount)
	}
	if snap.DeviceQueryDurationTotalNs != (200 * time.Millisecond).Nanoseconds() {
		t.Errorf("query total = %d", snap.DeviceQueryDurationTotalNs)
	}
	if snap.DeviceLockWaitCount != 1 || snap.DeviceLockWaitTotalNs != time.Second.Nanoseconds() {
		t.Errorf("lock wait = %d/%d", snap.DeviceLockWaitCount, snap.DeviceLockWaitTotalNs)
	}
}

func TestInMemory_ConcurrentRecordsServed(t *testing.T) {
	t.Parallel()

	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddRecordsServed(3)
			m.AddRecordsServed(0)
		}()
	}
	wg.Wait()

	if got := m.Snapshot().RecordsServed; got != 150 {
		t.Errorf("records served = %d, want 150", got)
	}
}

func TestNoop_ImplementsRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncDeviceSession(OutcomeSuccess)
	r.IncDeviceDisconnectError()
	r.ObserveDeviceQueryDuration(time.Second)
	r.ObserveDeviceLockWait(time.Second)
	r.IncRequestRejected()
	r.AddRecordsServed(10)
}
