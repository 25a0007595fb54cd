/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the timesheet engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse flags and environment (a .env file is loaded first when present)
  2. Initialize logging
  3. Open the store (SQLite or PostgreSQL) and migrate the schema
  4. Create the timesheet service, API handler and router
  5. Start the AutoSeal scheduler for the configured tenants
  6. Start server with graceful shutdown

CONFIGURATION (flag / environment):
  --port              PORT               HTTP server port (default: 8080)
  --database-driver   DATABASE_DRIVER    sqlite or postgres (default: sqlite)
  --database-url      DATABASE_URL       SQLite path or PostgreSQL DSN (default: timesheet.db)
  --jwt-secret        JWT_SECRET         HS256 secret for bearer tokens (required)
  --debug             DEBUG              Debug logging
  --log-dir           LOG_DIR            Also write rotated logs under this directory
  --autoseal-interval AUTOSEAL_INTERVAL  AutoSeal tick (default: 1h, 0 disables)
  --autoseal-tenants  AUTOSEAL_TENANTS   Comma-separated tenants processed by AutoSeal
  --allowed-origins   ALLOWED_ORIGINS    CORS origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the AutoSeal scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  JWT_SECRET=dev ./server --database-url=./data/timesheet.db

  # Run against PostgreSQL
  JWT_SECRET=dev ./server --database-driver=postgres \
      --database-url="postgres://timesheet@localhost/timesheet?sslmode=disable"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: AutoSeal scheduler
  - store/sqlstore/store.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	_ "github.com/joho/godotenv/autoload"

	"github.com/warp/timesheet-engine/api"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/logger"
	"github.com/warp/timesheet-engine/store/sqlstore"
	"github.com/warp/timesheet-engine/timesheet"
)

var CLI struct {
	Version kong.VersionFlag

	Port           int           `help:"HTTP server port." env:"PORT" default:"8080"`
	DatabaseDriver string        `help:"Database driver." env:"DATABASE_DRIVER" enum:"sqlite,postgres" default:"sqlite"`
	DatabaseURL    string        `help:"SQLite path or PostgreSQL DSN." env:"DATABASE_URL" default:"timesheet.db"`
	JWTSecret      string        `help:"HS256 secret for bearer tokens." env:"JWT_SECRET" required:""`
	Debug          bool          `help:"Enable debug logging." env:"DEBUG"`
	LogDir         string        `help:"Directory for rotated log files." env:"LOG_DIR" type:"path"`
	AllowedOrigins []string      `help:"CORS allowed origins." env:"ALLOWED_ORIGINS"`
	AutoSeal       time.Duration `help:"AutoSeal interval, 0 disables." name:"autoseal-interval" env:"AUTOSEAL_INTERVAL" default:"1h"`
	Tenants        []string      `help:"Tenants processed by AutoSeal." name:"autoseal-tenants" env:"AUTOSEAL_TENANTS"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("timesheet-server"),
		kong.Description("Weekly timesheet lifecycle engine"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := logger.Init(logger.Config{Debug: CLI.Debug, Dir: CLI.LogDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Initialize store
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, CLI.DatabaseDriver, CLI.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize database", "err", err)
	}
	defer store.Close()

	svc := timesheet.NewService(store, timesheet.LogNotifier{Log: logger.Get()})
	svc.Log = logger.Get()

	router := api.NewRouter(api.NewHandler(svc), api.NewAuthenticator(CLI.JWTSecret), api.RouterConfig{
		AllowedOrigins: CLI.AllowedOrigins,
	})

	tenants := make([]generic.TenantID, len(CLI.Tenants))
	for i, t := range CLI.Tenants {
		tenants[i] = generic.TenantID(t)
	}
	scheduler := api.NewAutoSealScheduler(svc, tenants)
	scheduler.CheckInterval = CLI.AutoSeal
	scheduler.Enabled = CLI.AutoSeal > 0
	scheduler.Start()
	if next := scheduler.GetNextRunTime(); !next.IsZero() {
		logger.Info("AutoSeal scheduled", "next_run", next.Format(time.RFC3339))
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", CLI.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", "addr", server.Addr, "driver", store.Dialect())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}

	logger.Info("Server stopped")
}
