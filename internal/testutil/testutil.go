// Package testutil provides shared helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clockbridge/clockbridge/internal/device"
	"github.com/clockbridge/clockbridge/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 437000

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakeDevice is an in-memory device.Dialer that records how it was used.
type FakeDevice struct {
	Attendances []model.AttendanceRecord
	Users       []model.UserRecord

	DialErr       error
	QueryErr      error
	DisconnectErr error
	// Hold keeps every query busy for this long, to observe overlapping sessions.
	Hold time.Duration

	mu          sync.Mutex
	dials       int
	disconnects int
	active      int
	maxActive   int
}

// Dial implements device.Dialer.
func (f *FakeDevice) Dial(ctx context.Context, addr string, timeout time.Duration) (device.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dials++
	if f.DialErr != nil {
		return nil, f.DialErr
	}

	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	return &fakeSession{device: f}, nil
}

// Dials returns the number of Dial calls.
func (f *FakeDevice) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

// Disconnects returns the number of Disconnect calls.
func (f *FakeDevice) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// MaxConcurrent returns the highest number of sessions open at the same time.
func (f *FakeDevice) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

type fakeSession struct {
	device *FakeDevice
}

func (s *fakeSession) hold(ctx context.Context) error {
	if s.device.Hold <= 0 {
		return nil
	}
	select {
	case <-time.After(s.device.Hold):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSession) Attendances(ctx context.Context) ([]model.AttendanceRecord, error) {
	if err := s.hold(ctx); err != nil {
		return nil, err
	}
	if s.device.QueryErr != nil {
		return nil, s.device.QueryErr
	}
	return append([]model.AttendanceRecord(nil), s.device.Attendances...), nil
}

func (s *fakeSession) Users(ctx context.Context) ([]model.UserRecord, error) {
	if err := s.hold(ctx); err != nil {
		return nil, err
	}
	if s.device.QueryErr != nil {
		return nil, s.device.QueryErr
	}
	return append([]model.UserRecord(nil), s.device.Users...), nil
}

func (s *fakeSession) Disconnect(ctx context.Context) error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()

	s.device.disconnects++
	s.device.active--
	return s.device.DisconnectErr
}
