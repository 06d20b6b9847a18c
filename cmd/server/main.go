// Package main provides the catalog server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lorelei/internal/api/rest"
	"github.com/osa030/lorelei/internal/app/library"
	"github.com/osa030/lorelei/internal/infra/blob"
	"github.com/osa030/lorelei/internal/infra/config"
	"github.com/osa030/lorelei/internal/infra/hooks"
	"github.com/osa030/lorelei/internal/infra/logger"
	"github.com/osa030/lorelei/internal/infra/store"
)

var (
	app        = kingpin.New("lorelei-server", "lorelei song catalog server")
	configPath = app.Flag("config", "Path to config file (defaults apply when empty)").Envar("LORELEI_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %q", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic so that deferred cleanups run on error.
func run(cfg *config.Config) error {
	db, err := store.Open(store.Config{DSN: cfg.Database.DSN, Debug: cfg.Database.Debug})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	files, err := blob.New(cfg.Blob)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	catalog := library.NewService(db, files)
	handler := rest.NewHandler(catalog, files, rest.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting catalog server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	ctx := context.Background()
	hooks.Default.Run(ctx, "on_started", cfg.Hooks.OnStarted)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	zlog.Info().Msg("Server stopped")

	hooks.Default.Run(ctx, "on_stopped", cfg.Hooks.OnStopped)
	return nil
}
