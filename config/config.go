// Package config loads server configuration from an optional file, SLA_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is prepended to every environment key: capacity.timeout is
// read from SLA_CAPACITY_TIMEOUT.
const EnvPrefix = "SLA"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Capacity  CapacityConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

// ServerConfig configures the HTTP listener. A zero RatePerSecond disables
// per-client rate limiting.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	RatePerSecond  float64
	Burst          int
}

type DatabaseConfig struct {
	Path string
}

// CapacityConfig configures the capacity planner client. An empty Endpoint
// disables the capacity path.
type CapacityConfig struct {
	Endpoint      string
	Token         string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxConcurrent int
}

type SchedulerConfig struct {
	VendorCode   string
	BatchTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

// SetDefaults registers every key with its default so that environment
// variables are picked up even when no file sets the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.rate_per_second", 0.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("database.path", "entitlements.db")
	v.SetDefault("capacity.endpoint", "")
	v.SetDefault("capacity.token", "")
	v.SetDefault("capacity.timeout", 5*time.Second)
	v.SetDefault("capacity.rate_per_second", 10.0)
	v.SetDefault("capacity.burst", 5)
	v.SetDefault("capacity.max_concurrent", 4)
	v.SetDefault("scheduler.vendor_code", "WM")
	v.SetDefault("scheduler.batch_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults and environment binding. If
// file is non-empty it is read; a missing explicit file is an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// FromViper extracts and validates the configuration.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
			RatePerSecond:  v.GetFloat64("server.rate_per_second"),
			Burst:          v.GetInt("server.burst"),
		},
		Database: DatabaseConfig{Path: v.GetString("database.path")},
		Capacity: CapacityConfig{
			Endpoint:      strings.TrimSpace(v.GetString("capacity.endpoint")),
			Token:         v.GetString("capacity.token"),
			Timeout:       v.GetDuration("capacity.timeout"),
			RatePerSecond: v.GetFloat64("capacity.rate_per_second"),
			Burst:         v.GetInt("capacity.burst"),
			MaxConcurrent: v.GetInt("capacity.max_concurrent"),
		},
		Scheduler: SchedulerConfig{
			VendorCode:   strings.TrimSpace(v.GetString("scheduler.vendor_code")),
			BatchTimeout: v.GetDuration("scheduler.batch_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is New followed by FromViper.
func Load(file string) (Config, error) {
	v, err := New(file)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("server.rate_per_second must not be negative, got %v", c.Server.RatePerSecond))
	}
	if c.Server.RatePerSecond > 0 && c.Server.Burst <= 0 {
		errs = append(errs, fmt.Errorf("server.burst must be positive when rate limiting, got %d", c.Server.Burst))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Capacity.Endpoint != "" {
		u, err := url.Parse(c.Capacity.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("capacity.endpoint %q is not an http(s) URL", c.Capacity.Endpoint))
		}
	}
	if c.Capacity.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("capacity.timeout must be positive, got %s", c.Capacity.Timeout))
	}
	if c.Capacity.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("capacity.rate_per_second must not be negative, got %v", c.Capacity.RatePerSecond))
	}
	if c.Capacity.Burst <= 0 {
		errs = append(errs, fmt.Errorf("capacity.burst must be positive, got %d", c.Capacity.Burst))
	}
	if c.Capacity.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("capacity.max_concurrent must be positive, got %d", c.Capacity.MaxConcurrent))
	}
	if c.Scheduler.VendorCode == "" {
		errs = append(errs, errors.New("scheduler.vendor_code is required"))
	}
	if c.Scheduler.BatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.batch_timeout must be positive, got %s", c.Scheduler.BatchTimeout))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// LOGGING
// =============================================================================

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process logger. Invalid settings were rejected by
// Validate; here they fall back to info/text.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
