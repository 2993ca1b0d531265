package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"i4.energy/across/tk5000/tracker"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	pflag.String("serial-port", "/dev/ttyUSB0", "Serial port the tracker is connected to")
	pflag.Int("baud-rate", tracker.DefaultBaudRate, "Baud rate for serial communication")
	pflag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	pflag.String("token", "", "Device password")
	pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	pflag.String("log-format", "json", "Log format (json, console)")
	pflag.Duration("command-timeout", 5*time.Second, "Timeout for single-line commands")
	pflag.Duration("download-timeout", time.Minute, "Timeout for position log downloads")
	pflag.String("dlrec-params", "", `Position download parameters, e.g. "0,0"`)
	pflag.String("export-name", "positions-%Y%m%d-%H%M%S.csv", "strftime pattern for CSV download names")
	pflag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configPath), WithEnv(), WithFlags(pflag.CommandLine))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stderr, config.LogLevel, config.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	trackerConfig, err := tracker.NewConfigBuilder().
		WithDialer(tracker.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		WithToken(config.Token).
		WithCommandTimeout(config.CommandTimeout).
		WithDownloadTimeout(config.DownloadTimeout).
		WithDownloadParams(config.DownloadParams()...).
		WithProbe(true).
		WithLogger(logger.With().Str("component", "tracker").Logger()).
		Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create tracker config")
	}

	tr, err := tracker.New(context.Background(), trackerConfig)
	if err != nil {
		logger.Fatal().Err(err).Str("port", config.SerialPort).Int("baud", config.BaudRate).Msg("Failed to open tracker")
	}

	logger.Info().Str("port", config.SerialPort).Msg("Starting tracker gateway")

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:     logger.With().Str("component", "server").Logger(),
			Tracker:    tr,
			ExportName: config.ExportName,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("address", httpServer.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := <-sigChan
	logger.Info().Stringer("signal", sig).Msg("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info().Msg("Closing HTTP server")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to gracefully shutdown server")
	}

	logger.Info().Msg("Closing tracker connection")
	if err := tr.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close tracker")
	}
}

// newLogger builds the process logger: JSON lines, or human-readable output
// when format is "console".
func newLogger(out io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	switch format {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Str("app", "tk5000-gw").Logger(), nil
}
