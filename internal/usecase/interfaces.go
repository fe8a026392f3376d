package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/i2y/restmcp/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound = errors.New("tool not found")
)

// --- Document Source Related ---

// SchemaSourceConfig represents a document source with optional request headers.
type SchemaSourceConfig struct {
	URL     string
	Headers map[string]string
}

// SchemaFetcher fetches API documents from a source.
type SchemaFetcher interface {
	Fetch(ctx context.Context, source string) (domain.APISchema, error)
	FetchWithConfig(ctx context.Context, config SchemaSourceConfig) (domain.APISchema, error)
}

// ToolGenerator builds a catalogue from a fetched document. Tools and details
// correspond by index and share the same names.
type ToolGenerator interface {
	Generate(schema domain.APISchema) ([]domain.Tool, []InvocationDetails, error)
}

// ToolRepository stores the current catalogue.
type ToolRepository interface {
	// Save replaces the whole catalogue. tools and details must correspond by index.
	Save(ctx context.Context, tools []domain.Tool, details []InvocationDetails) error

	// List returns the tools in catalogue order.
	List(ctx context.Context) ([]domain.Tool, error)

	FindToolByName(ctx context.Context, name string) (*domain.Tool, error)
	FindInvocationDetailsByName(ctx context.Context, name string) (*InvocationDetails, error)
}

// --- MCP Server Abstraction ---

// ToolPublisher exposes the stored catalogue to MCP clients. It is called
// after every successful sync.
type ToolPublisher interface {
	Publish(ctx context.Context) error
}

// --- Observability ---

// Metrics receives call and catalogue measurements.
type Metrics interface {
	ObserveToolCall(tool, outcome string, elapsed time.Duration)
	SetCatalogueSize(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveToolCall(string, string, time.Duration) {}
func (noopMetrics) SetCatalogueSize(int)                          {}

// NoopMetrics discards every measurement.
var NoopMetrics Metrics = noopMetrics{}
