/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the timesheet costing server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, then apply flags
  2. Initialize logging (stderr plus optional rotated file)
  3. Open the SQLite store
  4. Build the service with configured setting defaults
  5. Seed the bootstrap admin if configured and missing
  6. Configure HTTP router and start with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      SQLite database path (DATABASE_PATH, default: timecost.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and a seeded admin
  ADMIN_SEED_EMAIL=ops@example.com ADMIN_SEED_PASSWORD=s3cret-pass ./server -db=./data/timecost.db

  # Run with in-memory database on a different port
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/timecost/api"
	"github.com/warp/timecost/auth"
	"github.com/warp/timecost/config"
	"github.com/warp/timecost/logger"
	"github.com/warp/timecost/store/sqlite"
	"github.com/warp/timecost/timesheet"
)

func main() {
	cfg := config.Load()

	// Flags
	port := flag.String("port", cfg.ServerPort, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()

	if err := logger.Init(logger.Config{Debug: cfg.LogDebug, Dir: cfg.LogDir}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", "path", *dbPath, "err", err)
	}
	defer store.Close()

	svc := timesheet.NewService(store, timesheet.Defaults{
		ToleranceMinutes:   cfg.DailyToleranceMinutes,
		AllowedEmailDomain: cfg.AllowedEmailDomain,
	})

	if _, err := auth.SeedAdmin(context.Background(), svc, cfg.AdminSeedEmail, cfg.AdminSeedPassword); err != nil {
		logger.Fatal("failed to seed admin", "email", cfg.AdminSeedEmail, "err", err)
	}
	if cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("JWT_SECRET is not set; using the development default")
	}

	handler := api.NewHandler(svc, auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration))
	router := api.NewRouter(handler, api.Options{})

	// Create server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", "http://localhost:"+*port, "db", *dbPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	logger.Info("server stopped")
}
