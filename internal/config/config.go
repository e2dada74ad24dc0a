// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"3000"`

	// Time-clock device
	DeviceHost     string        `env:"DEVICE_HOST" envDefault:"192.168.1.240"`
	DevicePort     int           `env:"DEVICE_PORT" envDefault:"8818"`
	DeviceTimeout  time.Duration `env:"DEVICE_TIMEOUT" envDefault:"10s"`
	DeviceTimezone string        `env:"DEVICE_TIMEZONE" envDefault:"Local"`
	// DeviceLockTTL bounds how long a crashed replica can hold the Redis device lock.
	DeviceLockTTL time.Duration `env:"DEVICE_LOCK_TTL" envDefault:"30s"`

	// Optional backends. Empty disables the cross-replica lock, rate
	// limiting and the query audit log respectively.
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout must outlast a slow device download.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (requires Redis)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitRPM     int  `env:"RATE_LIMIT_RPM" envDefault:"30"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// Comma-separated list of allowed origins (e.g., "https://hr.example.com,*.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DeviceAddr returns the host:port of the time-clock device.
func (c *Config) DeviceAddr() string {
	return net.JoinHostPort(c.DeviceHost, strconv.Itoa(c.DevicePort))
}

// Location resolves DeviceTimezone. Device timestamps carry no zone, so this
// must match the zone the device clock is set to.
func (c *Config) Location() (*time.Location, error) {
	if c.DeviceTimezone == "" || strings.EqualFold(c.DeviceTimezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DeviceTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_TIMEZONE %q: %w", c.DeviceTimezone, err)
	}
	return loc, nil
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks values that parse fine but cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.AppPort < 1 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.AppPort))
	}
	if strings.TrimSpace(c.DeviceHost) == "" {
		errs = append(errs, errors.New("DEVICE_HOST is required"))
	}
	if c.DevicePort < 1 || c.DevicePort > 65535 {
		errs = append(errs, fmt.Errorf("DEVICE_PORT out of range: %d", c.DevicePort))
	}
	if c.DeviceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DEVICE_TIMEOUT must be positive: %s", c.DeviceTimeout))
	}
	if c.DeviceLockTTL < c.DeviceTimeout {
		errs = append(errs, fmt.Errorf("DEVICE_LOCK_TTL (%s) must not be shorter than DEVICE_TIMEOUT (%s)", c.DeviceLockTTL, c.DeviceTimeout))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitEnabled && c.RedisURL == "" {
		errs = append(errs, errors.New("RATE_LIMIT_ENABLED requires REDIS_URL"))
	}
	if c.RateLimitRPM < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPM and RATE_LIMIT_BURST must not be negative"))
	}
	if c.RateLimitEnabled && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled: %d", c.RateLimitBurst))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	return load(env.Options{Environment: environment})
}

// LoadWithDotEnv reads path as a dotenv file, overlays the process environment
// (which wins) and parses the result. A missing file is not an error.
func LoadWithDotEnv(path string) (*Config, error) {
	fileVars, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	merged := make(map[string]string, len(fileVars))
	for k, v := range fileVars {
		merged[k] = v
	}
	for k, v := range env.ToMap(os.Environ()) {
		merged[k] = v
	}
	return LoadFrom(merged)
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
