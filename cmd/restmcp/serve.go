package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	mcpGoServer "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	transportStdio = "stdio"
	transportSSE   = "sse"
	transportHTTP  = "http"
)

// mcpListener is the shared shape of the SSE and streamable HTTP servers.
type mcpListener interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg, cmd.Root().ErrWriter)
	defer closeLog()
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", cfg.ParsedLogLevel().String()), slog.String("transport", cfg.Transport))

	shutdownOtel, err := initOtelProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	a := newApplication(cfg, logger)
	if err := a.load(ctx); err != nil {
		return err
	}

	switch cfg.Transport {
	case transportStdio:
		logger.Info("Starting in STDIO mode")
		stdioServer := mcpGoServer.NewStdioServer(a.mcp)
		stdioServer.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	case transportSSE:
		logger.Info("Starting in SSE mode")
		return a.serveNetwork(ctx, mcpGoServer.NewSSEServer(a.mcp, mcpGoServer.WithBaseURL("http://"+cfg.ListenAddr)))
	case transportHTTP:
		logger.Info("Starting in streamable HTTP mode")
		return a.serveNetwork(ctx, mcpGoServer.NewStreamableHTTPServer(a.mcp))
	default:
		return fmt.Errorf("invalid transport mode %q: want stdio, sse or http", cfg.Transport)
	}
}

// serveNetwork runs the MCP listener and the admin server until ctx ends or
// either fails, then shuts both down.
func (a *application) serveNetwork(ctx context.Context, listener mcpListener) error {
	cfg := a.cfg
	adminServer := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      a.adminHandler(),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("MCP server starting.", slog.String("address", cfg.ListenAddr))
		if err := listener.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Info("Admin HTTP server starting.", slog.String("address", adminServer.Addr))
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(adminServer.Shutdown(shutdownCtx), listener.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("Server stopped with error.", slog.Any("error", err))
		return err
	}
	a.logger.Info("Servers shut down gracefully.")
	return nil
}
