package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skypro1111/forkstream-receiver/internal/config"
	"github.com/skypro1111/forkstream-receiver/internal/metrics"
	"github.com/skypro1111/forkstream-receiver/internal/server"
	"github.com/skypro1111/forkstream-receiver/internal/sink"
	"github.com/skypro1111/forkstream-receiver/internal/stats"
	"github.com/skypro1111/forkstream-receiver/internal/stream"
)

const (
	serviceName    = "forkstream-receiver"
	serviceVersion = "1.0.0"
)

var cfgFile string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Start the UDP receiver and record incoming streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListen(cfgFile)
	},
}

func init() {
	listenCmd.Flags().StringVar(&cfgFile, "config", "", "path to configuration file")
	rootCmd.AddCommand(listenCmd)
}

func runListen(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)
	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Server.UDPPort),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.String("output_dir", cfg.Recording.OutputDir),
		slog.String("format", cfg.Recording.Format),
		slog.Int("stream_timeout", cfg.Recording.StreamTimeout),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics()

	fileSink := sink.NewFileSink(cfg.Recording.OutputDir, cfg.Recording.Format,
		cfg.Recording.SampleRate, logger, appMetrics)
	registry := stream.NewRegistry()
	reaper := stream.NewReaper(fileSink, cfg.Recording.GetStreamTimeoutDuration(), logger)
	collector := stats.NewCollector()

	receiver := server.NewReceiver(cfg, logger, registry, reaper, collector, appMetrics)

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, registry, receiver, collector, appMetrics)
	}

	if err := receiver.Start(); err != nil {
		return fmt.Errorf("failed to start UDP receiver: %w", err)
	}

	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.UDPPort)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := receiver.Stop(); err != nil {
		logger.Error("Error stopping UDP receiver", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
	return nil
}

// initLogger creates the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
