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

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/config"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/server"
	"github.com/MeKo-Tech/dermascan/internal/version"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the scan API",
	Long: `Start an HTTP server that crops and classifies uploaded photos.

The server provides the following endpoints:
  POST /scan       - Crop and classify an uploaded image
  POST /scan/batch - Scan several base64 images in one request
  POST /crop       - Return the cropped image only
  GET  /ws/scan    - WebSocket scan stream
  GET  /health     - Liveness check
  GET  /ready      - Model readiness
  GET  /model      - Loaded model information
  GET  /metrics    - Prometheus metrics

If the model cannot be loaded the server still starts; /crop keeps working
and scan endpoints answer 503 until a restart with a valid model.

Examples:
  dermascan serve
  dermascan serve --port 8080
  dermascan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyModelFlags(cfg, cmd)
		applyServeFlags(cfg, cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		scanCfg, err := cfg.ToScanConfig()
		if err != nil {
			return err
		}

		cls, err := classifier.New(cfg.ToClassifierConfig())
		if err != nil {
			return fmt.Errorf("failed to create classifier: %w", err)
		}
		defer func() { _ = cls.Close() }()
		if err := cls.Initialize(); err != nil {
			slog.Warn("Model not loaded, serving crops only", "error", err)
		}

		scanner, err := scan.New(scanCfg, cls)
		if err != nil {
			return err
		}

		srv, err := server.New(toServerConfig(cfg), scanner, cls)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		host, port := cfg.Server.Host, cfg.Server.Port
		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
		}

		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		go srv.RunMaintenance(ctx)

		go func() {
			slog.Info("Starting scan server", "host", host, "port", port, "model_ready", cls.IsReady())
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

		cancel()
		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		if err := cls.Close(); err != nil {
			slog.Error("Classifier cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// applyServeFlags copies changed server flags into cfg.
func applyServeFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("artifact-ttl") {
		cfg.Server.ArtifactTTLHours, _ = flags.GetInt("artifact-ttl")
	}
	if flags.Changed("crop-dir") {
		cfg.Crop.OutputDir, _ = flags.GetString("crop-dir")
	}

	rl := &cfg.Server.RateLimit
	if flags.Changed("rate-limit-enabled") {
		rl.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("burst") {
		rl.Burst, _ = flags.GetInt("burst")
	}
	if flags.Changed("max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		rl.MaxDataPerDayMB, _ = flags.GetInt("max-data-per-day")
	}
}

// toServerConfig maps the configuration to server.Config.
func toServerConfig(cfg *config.Config) server.Config {
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Version:     version.Version,

		CleanupInterval:   time.Duration(cfg.Server.CleanupIntervalMin) * time.Minute,
		ClientIdleTimeout: time.Duration(cfg.Server.ClientIdleHours) * time.Hour,
		ArtifactTTL:       time.Duration(cfg.Server.ArtifactTTLHours) * time.Hour,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			Burst:             rl.Burst,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     int64(rl.MaxDataPerDayMB) * 1024 * 1024,
		},
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addModelFlags(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("crop-dir", "", "directory for crop artifacts")
	serveCmd.Flags().Int("artifact-ttl", 24, "hours to keep crop artifacts (0 = keep forever)")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("burst", 10, "requests a client may send at once before the per-minute rate applies")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	serveCmd.Flags().Int("max-data-per-day", 0, "maximum upload volume per day per client in MB (0 = unlimited)")
}
