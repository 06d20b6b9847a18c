// Package main provides the player daemon entry point.
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
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/lorelei/internal/api/connect"
	"github.com/osa030/lorelei/internal/api/playerv1/playerv1connect"
	"github.com/osa030/lorelei/internal/app/notification"
	"github.com/osa030/lorelei/internal/app/playback"
	"github.com/osa030/lorelei/internal/infra/config"
	"github.com/osa030/lorelei/internal/infra/hooks"
	"github.com/osa030/lorelei/internal/infra/logger"
	"github.com/osa030/lorelei/internal/infra/songapi"
)

var (
	app        = kingpin.New("lorelei-player", "lorelei playback and queue controller")
	configPath = app.Flag("config", "Path to config file (defaults apply when empty)").Envar("LORELEI_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	catalogURL = app.Flag("catalog", "Catalog server URL (overrides config)").String()
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
	if *catalogURL != "" {
		cfg.Player.CatalogURL = *catalogURL
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic so that deferred cleanups run on error.
func run(cfg *config.Config) error {
	catalog, err := songapi.New(songapi.Config{
		BaseURL: cfg.Player.CatalogURL,
		Timeout: cfg.Player.RequestTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	controller := playback.NewController(catalog, playback.Config{
		RestartThreshold: cfg.Player.RestartThreshold(),
		EventBuffer:      cfg.Player.EventBuffer,
	})
	defer controller.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A catalog that is down at startup is not fatal; clients can Refresh later.
	if err := controller.Load(ctx); err != nil {
		if !errors.Is(err, playback.ErrFetchFailed) {
			return err
		}
		zlog.Warn().Msgf("Initial catalog load failed, starting empty: %v", err)
	} else {
		zlog.Info().Msgf("Catalog loaded: songs=%d", len(controller.Snapshot().Catalog))
	}

	notifier := notification.NewManager(cfg.Player.SendTimeout())
	defer notifier.Close()

	service := apiconnect.NewPlayerService(controller, notifier)
	go service.Run(ctx)

	mux := http.NewServeMux()
	path, handler := playerv1connect.NewPlayerServiceHandler(service)
	mux.Handle(path, handler)

	server := &http.Server{
		Addr:              cfg.Player.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting player: addr=%s catalog=%s", cfg.Player.Addr, cfg.Player.CatalogURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	hooks.Default.Run(ctx, "on_started", cfg.Hooks.OnStarted)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// End the event pump first so open Subscribe streams return.
	cancel()
	<-service.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	zlog.Info().Msg("Player stopped")

	hooks.Default.Run(context.Background(), "on_stopped", cfg.Hooks.OnStopped)
	return nil
}
