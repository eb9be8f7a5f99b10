package cmd

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

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/catalog"
	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/server"
	"github.com/MeKo-Tech/barscan/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing the decode and lookup endpoints.

The catalog is created (and seeded with a demo product when empty) before
the server starts listening.

The server provides the following endpoints:
  POST /api/decode        - Decode barcodes in an uploaded image (field "image")
  GET  /api/search?code=  - Look a code up by barcode, then by SKU
  GET  /ws/decode         - Stream image frames over a WebSocket
  GET  /health            - Health check endpoint
  GET  /metrics           - Prometheus metrics

Examples:
  barscan serve
  barscan serve --port 8080
  CLOUDMERSIVE_API_KEY=... DB_PATH=/data/products.db barscan serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		if cfg.Provider.APIKey == "" {
			slog.Warn("No provider API key configured; decode requests will fail",
				"env", "CLOUDMERSIVE_API_KEY")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		store, err := openCatalog(ctx, cfg, cfg.Catalog.SeedDemo)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		decoder := barcode.NewClient(cfg.ToBarcodeConfig())
		apiServer := server.NewServer(toServerConfig(cfg), decoder, catalog.NewResolver(store))
		apiServer.StartRateLimitPruning(ctx, 10*time.Minute, 2*time.Hour)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
		}

		go func() {
			slog.Info("Starting barscan server",
				"version", version.String(),
				"host", cfg.Server.Host, "port", cfg.Server.Port, "catalog", store.Path(),
				"provider", decoder.Endpoint())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// openCatalog opens the store and runs Init before it is used.
func openCatalog(ctx context.Context, cfg *config.Config, seed bool) (*catalog.Store, error) {
	store, err := catalog.Open(cfg.ToCatalogOptions())
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx, seed); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	return store, nil
}

func toServerConfig(cfg *config.Config) server.Config {
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		CORSOrigin:       cfg.Server.CORSOrigin,
		MaxUploadMB:      int64(cfg.Server.MaxUploadMB),
		TimeoutSec:       cfg.Server.TimeoutSec,
		WebSocketEnabled: cfg.Server.WebSocketEnabled,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDay,
		},
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := config.DefaultConfig().Server
	flags := serveCmd.Flags()
	flags.StringP("host", "H", defaults.Host, "server host")
	flags.IntP("port", "p", defaults.Port, "server port (also PORT)")
	flags.String("cors-origin", defaults.CORSOrigin, "CORS allowed origin")
	flags.Int("max-upload-size", defaults.MaxUploadMB, "maximum upload size in MB")
	flags.Int("timeout", defaults.TimeoutSec, "request timeout in seconds")
	flags.Int("shutdown-timeout", defaults.ShutdownTimeout, "shutdown timeout in seconds")
	flags.Bool("websocket", defaults.WebSocketEnabled, "enable the /ws/decode endpoint")
	flags.Bool("seed-demo", config.DefaultConfig().Catalog.SeedDemo, "seed a demo product into an empty catalog")
	// Rate limiting flags
	flags.Bool("rate-limit-enabled", defaults.RateLimit.Enabled, "enable rate limiting")
	flags.Int("requests-per-minute", defaults.RateLimit.RequestsPerMinute, "maximum requests per minute per client")
	flags.Int("requests-per-hour", defaults.RateLimit.RequestsPerHour, "maximum requests per hour per client")
	flags.Int("max-requests-per-day", defaults.RateLimit.MaxRequestsPerDay, "maximum requests per day per client")
	flags.Int64("max-data-per-day", defaults.RateLimit.MaxDataPerDay, "maximum upload bytes per day per client")

	for key, flag := range map[string]string{
		"server.host":                            "host",
		"server.port":                            "port",
		"server.cors_origin":                     "cors-origin",
		"server.max_upload_mb":                   "max-upload-size",
		"server.timeout_sec":                     "timeout",
		"server.shutdown_timeout":                "shutdown-timeout",
		"server.websocket_enabled":               "websocket",
		"catalog.seed_demo":                      "seed-demo",
		"server.rate_limit.enabled":              "rate-limit-enabled",
		"server.rate_limit.requests_per_minute":  "requests-per-minute",
		"server.rate_limit.requests_per_hour":    "requests-per-hour",
		"server.rate_limit.max_requests_per_day": "max-requests-per-day",
		"server.rate_limit.max_data_per_day":     "max-data-per-day",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}
