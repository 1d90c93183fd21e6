package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eduvision/attendance/internal/attendance"
	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/detector"
	"github.com/eduvision/attendance/internal/logger"
	"github.com/eduvision/attendance/internal/metrics"
	"github.com/eduvision/attendance/internal/store"
	"github.com/eduvision/attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the attendance web server.
The server exposes a JSON API for enrolling identities, taking attendance
from camera frames and reading attendance reports, plus Prometheus metrics
on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort resolves host and port, flags taking precedence
// over environment configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (string, int) {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if flagHost := mustGetString(cmd, "host"); flagHost != "" {
		host = flagHost
	}
	if flagPort := mustGetInt(cmd, "port"); flagPort != 0 {
		port = flagPort
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	metrics.Register()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.MaxImageSize)
	index := store.NewIdentityIndex()
	svc := attendance.NewService(st, det, cfg.Matcher, index, log)

	if err := svc.RebuildIndex(context.Background()); err != nil {
		return fmt.Errorf("failed to build identity index: %w", err)
	}
	log.Info("identity index ready", zap.Int("identities", index.Len()))

	host, port := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(svc, st, host, port, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	log.Info("starting attendance server",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("driver", cfg.Database.Driver),
		zap.Float64("tolerance", cfg.Matcher.Tolerance),
		zap.Float64("acceptance_threshold", cfg.Matcher.AcceptanceThreshold),
	)

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
