package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/clockbridge/clockbridge/internal/metrics"
	"github.com/clockbridge/clockbridge/internal/model"
)

// DefaultTimeout applies when GatewayConfig.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// GatewayConfig holds the dependencies of a Gateway.
type GatewayConfig struct {
	Dialer  Dialer
	Addr    string
	Timeout time.Duration
	// Locker is optional. When set it is held for the whole session in addition
	// to the in-process guard.
	Locker  Locker
	Auditor Auditor
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// Gateway runs device operations inside guarded, self-closing sessions.
type Gateway struct {
	dialer  Dialer
	addr    string
	timeout time.Duration
	guard   *semaphore.Weighted
	locker  Locker
	auditor Auditor
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewGateway creates a Gateway. Nil metrics and logger fall back to no-op and slog.Default.
func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gateway{
		dialer:  cfg.Dialer,
		addr:    cfg.Addr,
		timeout: cfg.Timeout,
		guard:   semaphore.NewWeighted(1),
		locker:  cfg.Locker,
		auditor: cfg.Auditor,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Addr returns the device address.
func (g *Gateway) Addr() string {
	return g.addr
}

// Fetch opens a session, runs fetch and releases the session on every exit path.
//
// Dial failures are returned as *ConnectionError and fetch failures as *QueryError.
// Disconnect failures are logged and never returned. If dialing fails there is no
// session and Disconnect is not called.
func Fetch[T any](ctx context.Context, g *Gateway, operation string, fetch func(context.Context, Session) ([]T, error)) ([]T, error) {
	var out []T
	err := g.withSession(ctx, operation, func(ctx context.Context, s Session) (int, error) {
		records, err := fetch(ctx, s)
		if err != nil {
			return 0, err
		}
		out = records
		return len(records), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) withSession(ctx context.Context, operation string, fn func(context.Context, Session) (int, error)) (err error) {
	run := &model.QueryRun{
		Operation:  operation,
		DeviceAddr: g.addr,
		StartedAt:  time.Now(),
	}
	defer func() { g.finish(ctx, run, err) }()

	release, err := g.acquire(ctx)
	if err != nil {
		g.metrics.IncDeviceSession(metrics.OutcomeConnectFailed)
		return &ConnectionError{Addr: g.addr, Err: err}
	}
	defer release()

	session, err := g.dialer.Dial(ctx, g.addr, g.timeout)
	if err != nil {
		g.metrics.IncDeviceSession(metrics.OutcomeConnectFailed)
		return &ConnectionError{Addr: g.addr, Err: err}
	}
	defer g.disconnect(ctx, session, operation)

	count, err := fn(ctx, session)
	if err != nil {
		g.metrics.IncDeviceSession(metrics.OutcomeQueryFailed)
		return &QueryError{Operation: operation, Err: err}
	}

	run.RecordCount = count
	g.metrics.IncDeviceSession(metrics.OutcomeSuccess)
	return nil
}

// acquire waits for exclusive access, bounded by the device timeout.
func (g *Gateway) acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	if err := g.guard.Acquire(waitCtx, 1); err != nil {
		return nil, fmt.Errorf("wait for device access: %w", err)
	}

	if g.locker == nil {
		g.metrics.ObserveDeviceLockWait(time.Since(start))
		return func() { g.guard.Release(1) }, nil
	}

	unlock, err := g.locker.Lock(waitCtx)
	if err != nil {
		g.guard.Release(1)
		return nil, fmt.Errorf("lock device: %w", err)
	}
	g.metrics.ObserveDeviceLockWait(time.Since(start))

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := unlock(unlockCtx); err != nil {
			g.logger.Warn("device lock release failed",
				slog.String("device", g.addr),
				slog.String("error", err.Error()),
			)
		}
		g.guard.Release(1)
	}, nil
}

// disconnect tears the session down even when the request context is already done.
func (g *Gateway) disconnect(ctx context.Context, s Session, operation string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	if err := s.Disconnect(ctx); err != nil {
		g.metrics.IncDeviceDisconnectError()
		g.logger.Warn("device disconnect failed",
			slog.String("device", g.addr),
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}
}

func (g *Gateway) finish(ctx context.Context, run *model.QueryRun, err error) {
	elapsed := time.Since(run.StartedAt)
	run.DurationMS = elapsed.Milliseconds()
	g.metrics.ObserveDeviceQueryDuration(elapsed)

	if err != nil {
		run.Error = err.Error()
	}

	if g.auditor == nil {
		return
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()
	if aerr := g.auditor.RecordQueryRun(auditCtx, run); aerr != nil {
		g.logger.Warn("query audit failed",
			slog.String("operation", run.Operation),
			slog.String("error", aerr.Error()),
		)
	}
}
