/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the entitlement engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, SLA_* environment, flags)
  2. Initialize SQLite store
  3. Build the capacity client when an endpoint is configured
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMANDS:
  server          Run the HTTP server (default)
  server check    Validate configuration and the stored field mappings and
                  calendar, then exit

COMMAND-LINE FLAGS:
  --config             Optional YAML/JSON/TOML config file
  --port               HTTP server port (default: 8080)
  --db                 SQLite database path (default: entitlements.db)
                       Use ":memory:" for in-memory database
  --capacity-endpoint  Capacity planner URL; empty disables the capacity path
  --log-level          debug, info, warn, error
  --log-format         text or json

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db=./data/entitlements.db

  # Run in memory with a capacity planner
  SLA_CAPACITY_TOKEN=secret ./server --db=:memory: \
    --capacity-endpoint=https://capacity.internal/api/availability

SEE ALSO:
  - config/config.go: Keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/entitlement-engine/api"
	"github.com/warp/entitlement-engine/capacity"
	"github.com/warp/entitlement-engine/config"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/metrics"
	"github.com/warp/entitlement-engine/sla"
	"github.com/warp/entitlement-engine/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"port":              "server.port",
	"db":                "database.path",
	"capacity-endpoint": "capacity.endpoint",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "server",
		Short:        "Entitlement resolution and SLA date calculation server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, cfgFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, config.NewLogger(cfg.Log, os.Stderr))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file")
	flags.Int("port", 8080, "HTTP server port")
	flags.String("db", "entitlements.db", "SQLite database path")
	flags.String("capacity-endpoint", "", "capacity planner URL (empty disables the capacity path)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration and stored engine settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, cfgFile)
			if err != nil {
				return err
			}
			return check(cmd.Context(), cfg, config.NewLogger(cfg.Log, os.Stderr))
		},
	})

	return root
}

// loadConfig layers flags over the file and environment.
func loadConfig(cmd *cobra.Command, cfgFile string) (config.Config, error) {
	v, err := config.New(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := bindFlags(cmd, v); err != nil {
		return config.Config{}, err
	}
	return config.FromViper(v)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("flag --%s is not defined", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

// =============================================================================
// SERVE
// =============================================================================

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	planner, err := newPlanner(cfg.Capacity)
	if err != nil {
		return err
	}
	if planner == nil {
		logger.Warn("capacity endpoint not configured, roll-off records use entitlement-based dates")
	}

	// An empty database is valid until a scenario or seed loads mappings.
	if err := validateStored(ctx, store); err != nil {
		logger.Warn("stored engine settings are not usable yet", "error", err)
	}

	reg, m := metrics.NewRegistry()
	handler := api.NewHandler(store, api.Config{
		Scheduler: sla.Config{
			Capacity:      planner,
			VendorCode:    cfg.Scheduler.VendorCode,
			BatchTimeout:  cfg.Scheduler.BatchTimeout,
			MaxConcurrent: cfg.Capacity.MaxConcurrent,
		},
		Logger:  logger,
		Metrics: m,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       reg,
		RatePerSecond:  cfg.Server.RatePerSecond,
		Burst:          cfg.Server.Burst,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Scheduler.BatchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "database", cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newPlanner returns nil when no endpoint is configured.
func newPlanner(c config.CapacityConfig) (sla.CapacityPlanner, error) {
	if c.Endpoint == "" {
		return nil, nil
	}
	client, err := capacity.New(capacity.Config{
		Endpoint:      c.Endpoint,
		Token:         c.Token,
		Timeout:       c.Timeout,
		RatePerSecond: c.RatePerSecond,
		Burst:         c.Burst,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("capacity client: %w", err)
	}
	return client, nil
}

// =============================================================================
// CHECK
// =============================================================================

func check(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	if _, err := newPlanner(cfg.Capacity); err != nil {
		return err
	}
	if err := validateStored(ctx, store); err != nil {
		return err
	}
	logger.Info("configuration ok", "database", cfg.Database.Path, "capacity", cfg.Capacity.Endpoint != "")
	return nil
}

// validateStored compiles the stored field mappings and business hours the
// way a request would.
func validateStored(ctx context.Context, store *sqlite.Store) error {
	raw, err := store.LoadFieldMappings(ctx)
	if err != nil {
		return fmt.Errorf("load field mappings: %w", err)
	}
	if _, err := entitlement.Compile(raw); err != nil {
		return err
	}
	hours, err := store.LoadBusinessHours(ctx)
	if err != nil {
		return fmt.Errorf("load business hours: %w", err)
	}
	if _, err := sla.New(sla.Config{Calendar: hours}); err != nil {
		return err
	}
	return nil
}
