package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"github.com/i2y/restmcp/configs"
	"github.com/i2y/restmcp/internal/adapter/inbound/mcphttp"
	"github.com/i2y/restmcp/internal/adapter/inbound/mcpserver"
	"github.com/i2y/restmcp/internal/adapter/outbound/github"
	"github.com/i2y/restmcp/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/restmcp/internal/adapter/outbound/memrepo"
	"github.com/i2y/restmcp/internal/adapter/outbound/metrics"
	"github.com/i2y/restmcp/internal/adapter/outbound/openapi"
	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

// application holds the wired dependencies shared by every command.
type application struct {
	cfg     *configs.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	repo    *memrepo.InMemoryToolRepository
	binder  *mcpserver.Binder
	mcp     *mcpGoServer.MCPServer
	sync    *usecase.SyncSchemaUseCase
	check   *usecase.CheckCatalogueUseCase
	source  usecase.SchemaSourceConfig
}

func newApplication(cfg *configs.Config, logger *slog.Logger) *application {
	collector := metrics.NewCollector("restmcp", logger)

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	logger.Debug("HTTP Client configured.", slog.Duration("timeout", cfg.HTTPClientTimeout))

	fetchers := map[domain.SchemaType]usecase.SchemaFetcher{
		domain.SchemaTypeOpenAPI: openapi.NewSchemaFetcher(httpClient, logger),
		domain.SchemaTypeGitHub:  github.NewFetcher(github.NewGHClient(github.ExecRunner), logger),
	}
	generator := openapi.NewToolGenerator(openapi.GeneratorOptions{
		Namespace:           cfg.Namespace,
		BaseURL:             cfg.BaseURL,
		DescriptionPrefixes: cfg.DescriptionPrefixes,
		Fallbacks:           collector,
	}, logger)

	invokerOpts := []httpinvoker.Option{httpinvoker.WithHeaders(cfg.RequestHeaders())}
	if cfg.RateLimit > 0 {
		invokerOpts = append(invokerOpts, httpinvoker.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	invoker := httpinvoker.New(httpClient, logger, invokerOpts...)

	repo := memrepo.NewInMemoryToolRepository(logger)
	binder := mcpserver.NewBinder(
		usecase.NewServeToolsUseCase(repo, logger),
		usecase.NewInvokeToolUseCase(repo, invoker, collector, logger),
		logger,
	)
	srv := mcpserver.NewServer("restmcp", version, binder)

	return &application{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		repo:    repo,
		binder:  binder,
		mcp:     srv,
		sync:    usecase.NewSyncSchemaUseCase(fetchers, generator, repo, binder, collector, logger),
		check:   usecase.NewCheckCatalogueUseCase(repo, logger),
		source:  usecase.SchemaSourceConfig{URL: cfg.Document},
	}
}

// load builds the catalogue from the configured document.
func (a *application) load(ctx context.Context) error {
	if a.source.URL == "" {
		return fmt.Errorf("no OpenAPI document configured: pass --document or set RESTMCP_DOCUMENT")
	}
	count, err := a.sync.Execute(ctx, a.source)
	if err != nil {
		return err
	}
	a.logger.Info("Catalogue loaded.", slog.Int("tools", count), slog.String("document", a.source.URL))
	return nil
}

func (a *application) adminHandler() http.Handler {
	mux := http.NewServeMux()
	mcphttp.NewHandlers(a.sync, a.check, a.repo, a.source, a.metrics.Handler(), a.logger).RegisterAdminRoutes(mux)
	return mux
}

// newLogger writes to w, or to the configured log file in stdio mode where
// stdout carries the protocol.
func newLogger(cfg *configs.Config, w io.Writer) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}
	if cfg.Transport != transportStdio {
		return slog.New(slog.NewTextHandler(w, opts)), func() {}
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}
	}
	return slog.New(slog.NewTextHandler(logFile, opts)), func() { _ = logFile.Close() }
}
