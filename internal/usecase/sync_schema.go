package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/i2y/restmcp/internal/domain"
)

// SyncSchemaUseCase fetches a document, builds its catalogue, stores it and
// republishes the tool set.
type SyncSchemaUseCase struct {
	fetchers   map[domain.SchemaType]SchemaFetcher
	generator  ToolGenerator
	repository ToolRepository
	publisher  ToolPublisher
	metrics    Metrics
	logger     *slog.Logger
}

// NewSyncSchemaUseCase creates a new SyncSchemaUseCase. publisher and metrics may be nil.
func NewSyncSchemaUseCase(
	fetchers map[domain.SchemaType]SchemaFetcher,
	generator ToolGenerator,
	repository ToolRepository,
	publisher ToolPublisher,
	metrics Metrics,
	logger *slog.Logger,
) *SyncSchemaUseCase {
	if metrics == nil {
		metrics = NoopMetrics
	}
	return &SyncSchemaUseCase{
		fetchers:   fetchers,
		generator:  generator,
		repository: repository,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger.With("usecase", "SyncSchema"),
	}
}

// SourceType picks the fetcher kind for a source string.
func SourceType(source string) domain.SchemaType {
	if strings.HasPrefix(source, "github://") {
		return domain.SchemaTypeGitHub
	}
	return domain.SchemaTypeOpenAPI
}

// Execute builds a fresh catalogue from source and replaces the stored one.
// The previous catalogue stays in place when any step fails.
func (uc *SyncSchemaUseCase) Execute(ctx context.Context, source SchemaSourceConfig) (int, error) {
	log := uc.logger.With(slog.String("source", source.URL))
	ctx, span := otel.Tracer("restmcp/usecase").Start(ctx, "SyncSchema")
	defer span.End()
	span.SetAttributes(attribute.String("restmcp.source", source.URL))

	fail := func(err error) (int, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	kind := SourceType(source.URL)
	fetcher, ok := uc.fetchers[kind]
	if !ok {
		log.Error("No schema fetcher available for source", slog.String("schema_type", string(kind)))
		return fail(fmt.Errorf("no schema fetcher available for source: %s", source.URL))
	}

	log.Info("Starting schema sync")
	fetched, err := fetcher.FetchWithConfig(ctx, source)
	if err != nil {
		log.Error("Failed to fetch schema", slog.Any("error", err))
		return fail(fmt.Errorf("failed to fetch schema from %s: %w", source.URL, err))
	}

	tools, details, err := uc.generator.Generate(fetched)
	if err != nil {
		log.Error("Failed to generate tools", slog.Any("error", err))
		return fail(fmt.Errorf("failed to generate tools for schema %s: %w", source.URL, err))
	}

	if err := uc.repository.Save(ctx, tools, details); err != nil {
		log.Error("Failed to save generated tools", slog.Any("error", err))
		return fail(fmt.Errorf("failed to save generated tools: %w", err))
	}
	uc.metrics.SetCatalogueSize(len(tools))

	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx); err != nil {
			log.Error("Failed to publish tools", slog.Any("error", err))
			return fail(fmt.Errorf("failed to publish tools: %w", err))
		}
	}

	span.SetAttributes(attribute.Int("restmcp.tools", len(tools)))
	log.Info("Successfully synced schema and tools", slog.Int("tool_count", len(tools)))
	return len(tools), nil
}
