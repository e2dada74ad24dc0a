// Package main is the entrypoint for the clockbridge API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clockbridge/clockbridge/internal/cache"
	"github.com/clockbridge/clockbridge/internal/config"
	"github.com/clockbridge/clockbridge/internal/device"
	"github.com/clockbridge/clockbridge/internal/handler"
	"github.com/clockbridge/clockbridge/internal/metrics"
	"github.com/clockbridge/clockbridge/internal/middleware"
	"github.com/clockbridge/clockbridge/internal/repository"
	"github.com/clockbridge/clockbridge/internal/server"
	"github.com/clockbridge/clockbridge/internal/service"
)

// startupTimeout bounds connecting to the optional backends.
const startupTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	// Load configuration; a local .env file fills in unset variables
	cfg, err := config.LoadWithDotEnv(".env")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid device time zone", "error", err)
		os.Exit(1)
	}

	metricsRecorder := metrics.NewInMemory()

	gatewayCfg := device.GatewayConfig{
		Dialer:  device.ZKDialer{Location: loc},
		Addr:    cfg.DeviceAddr(),
		Timeout: cfg.DeviceTimeout,
		Metrics: metricsRecorder,
		Logger:  logger,
	}

	var shutdowns []namedShutdown
	deps := routerDeps{
		cfg:     cfg,
		logger:  logger,
		metrics: metricsRecorder,
	}

	// Optional cache: cross-replica device lock and rate limiting
	if cfg.RedisURL != "" {
		startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		cacheClient, err := cache.New(startCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to Redis")

		gatewayCfg.Locker = cacheClient.DeviceLock(cfg.DeviceAddr(), cfg.DeviceLockTTL)
		deps.cacheChecker = cacheClient
		deps.limiter = cacheClient
		shutdowns = append(shutdowns, namedShutdown{"redis", func(context.Context) error { return cacheClient.Close() }})
	}

	// Optional database: query audit log
	if cfg.DatabaseURL != "" {
		startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		repo, err := repository.New(startCtx, cfg.DatabaseURL)
		if err == nil {
			err = repo.Migrate(startCtx)
		}
		cancel()
		if err != nil {
			logger.Error(
				"failed to initialise database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to database")

		gatewayCfg.Auditor = repo
		deps.dbChecker = repo
		deps.queryRuns = repo
		shutdowns = append(shutdowns, namedShutdown{"postgres", func(context.Context) error { repo.Close(); return nil }})
	}

	// Initialize services
	gateway := device.NewGateway(gatewayCfg)
	deps.attendance = service.NewAttendanceService(gateway, loc, metricsRecorder)

	// Create and run server
	srv := server.New(setupRouter(deps), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	for _, s := range shutdowns {
		srv.OnShutdown(s.name, s.fn)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"device", cfg.DeviceAddr(),
		"device_timeout", cfg.DeviceTimeout,
		"device_timezone", loc.String(),
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

type namedShutdown struct {
	name string
	fn   server.ShutdownFunc
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps collects everything setupRouter wires. Optional backends stay
// nil interfaces when they are not configured.
type routerDeps struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.InMemoryRecorder
	attendance *service.AttendanceService

	cacheChecker handler.HealthChecker
	dbChecker    handler.HealthChecker
	limiter      middleware.IPRateLimiter
	queryRuns    handler.QueryRunLister
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) http.Handler {
	cfg, logger := deps.cfg, deps.logger

	h := handler.New()
	healthHandler := handler.NewHealthHandler(deps.dbChecker, deps.cacheChecker)
	metricsHandler := handler.NewMetricsHandler(deps.metrics)
	attendanceHandler := handler.NewAttendanceHandler(deps.attendance, logger)
	userHandler := handler.NewUserHandler(deps.attendance, logger)
	auditHandler := handler.NewAuditHandler(deps.queryRuns, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))

	// Operational endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)
	r.Get("/", h.Index)

	rateLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:            logger,
		Limiter:           deps.limiter,
		Metrics:           deps.metrics,
		Enabled:           cfg.RateLimitEnabled,
		RequestsPerMinute: cfg.RateLimitRPM,
		Burst:             cfg.RateLimitBurst,
	})

	deviceRoutes := func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Get("/attendance", attendanceHandler.List)
			r.Get("/attendance/by-date", attendanceHandler.ByDate)
			r.Get("/users", userHandler.List)
		})
		r.Get("/audit/query-runs", auditHandler.QueryRuns)
	}

	// Device routes are served at the root and under /api
	r.Group(deviceRoutes)
	r.Route("/api", deviceRoutes)

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
