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

	"github.com/rs/zerolog/log"

	"github.com/refinekit/refine-mcp/internal/common/logtrace"
	"github.com/refinekit/refine-mcp/internal/mcpservice"
	"github.com/refinekit/refine-mcp/internal/refine"
	"github.com/refinekit/refine-mcp/internal/refine/config"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
	stdio      bool
	logLevel   string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()
	logtrace.SetLevel(opt.logLevel)

	slog.Info().Str("config_file", opt.configFile).Msg("loading configuration")
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	client := refine.NewFromConfig(config.Config())
	defer client.Close()

	service, aerr := mcpservice.CreateMCPService(client)
	if aerr != nil {
		return fmt.Errorf("creating MCP service: %w", aerr)
	}

	if opt.stdio {
		return service.ServeStdio(ctx)
	}

	serverErrors, shutdownServer := createMCPServer(ctx, service)

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createMCPServer(ctx context.Context, service *mcpservice.MCPService) (chan error, func()) {
	slog := log.With().Str("state", "init").Logger()

	addr := config.Config().Server.HostName + ":" + config.Config().Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           service.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("addr", addr).Msg("mcp server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", "", "Path to the config file (optional; environment is used when absent)")
	flag.BoolVar(&opt.stdio, "stdio", false, "Serve MCP over stdio instead of HTTP")
	flag.StringVar(&opt.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
