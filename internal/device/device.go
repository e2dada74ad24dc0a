// Package device manages sessions with the time-clock terminal.
//
// Every query runs inside its own session: the gateway waits for exclusive
// access, dials, runs exactly one operation and always disconnects before
// access is handed to the next caller.
package device

import (
	"context"
	"fmt"
	"time"

	"github.com/clockbridge/clockbridge/internal/model"
	"github.com/clockbridge/clockbridge/internal/zk"
)

// Session is a live connection to the terminal, valid for one request.
type Session interface {
	Attendances(ctx context.Context) ([]model.AttendanceRecord, error)
	Users(ctx context.Context) ([]model.UserRecord, error)
	Disconnect(ctx context.Context) error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, addr string, timeout time.Duration) (Session, error)
}

// Locker grants exclusive device access across processes.
// The returned unlock function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context) (unlock func(context.Context) error, err error)
}

// Auditor records metadata about device queries.
type Auditor interface {
	RecordQueryRun(ctx context.Context, run *model.QueryRun) error
}

// ZKDialer dials real terminals over TCP.
type ZKDialer struct {
	// Location is the zone terminal timestamps are decoded in.
	Location *time.Location
}

// Dial connects and performs the protocol handshake.
func (d ZKDialer) Dial(ctx context.Context, addr string, timeout time.Duration) (Session, error) {
	c, err := zk.Dial(ctx, addr, zk.Options{Timeout: timeout, Location: d.Location})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ConnectionError reports a failure to obtain a session.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to device %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError reports a failure while running a command on an open session.
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("device %s query: %v", e.Operation, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
