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

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for writing text and running the pipeline",
	Long: `Start an HTTP server that renders text with the current font and runs the
font pipeline on request.

The server provides the following endpoints:
  GET  /health       - Health check endpoint
  POST /write        - Render {"text": "..."} as PNG or PDF
  GET  /ws/fontmake  - WebSocket; send {"type": "run"} to run the pipeline
  GET  /metrics      - Prometheus metrics

Examples:
  handwriter serve
  handwriter serve --port 8080
  handwriter serve --host 0.0.0.0 --port 3000 --requests-per-minute 30`,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-text-size", 64, "maximum /write request size in KB")
	serveCmd.Flags().Int("timeout", 60, "request and pipeline run timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags; zero disables a limit
	serveCmd.Flags().Int("requests-per-minute", 0, "maximum /write requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 0, "maximum /write requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum /write requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 0, "maximum /write request data per day per client in KB")
}

// serveSettings applies the serve flags to cfg.Server.
func serveSettings(cmd *cobra.Command, cfg *config.Config) error {
	s := &cfg.Server
	if cmd.Flags().Changed("host") {
		s.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		s.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		s.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-text-size") {
		s.MaxTextKB, _ = cmd.Flags().GetInt("max-text-size")
	}
	if cmd.Flags().Changed("timeout") {
		s.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}
	if cmd.Flags().Changed("requests-per-minute") {
		s.RateLimit.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}
	if cmd.Flags().Changed("requests-per-hour") {
		s.RateLimit.RequestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
	}
	if cmd.Flags().Changed("max-requests-per-day") {
		s.RateLimit.MaxRequestsPerDay, _ = cmd.Flags().GetInt("max-requests-per-day")
	}
	if cmd.Flags().Changed("max-data-per-day") {
		s.RateLimit.MaxDataPerDayKB, _ = cmd.Flags().GetInt64("max-data-per-day")
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", s.Port)
	}
	return cfg.Validate()
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := serveSettings(cmd, cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.NewServer(server.ConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
	}

	go func() {
		slog.Info("Starting handwriter server", "host", cfg.Server.Host, "port", cfg.Server.Port,
			"root", cfg.Paths.Root)
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
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}

	slog.Info("Graceful shutdown completed")
	return nil
}
