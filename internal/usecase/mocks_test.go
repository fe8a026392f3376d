package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// MockToolRepository is a mock implementation of the ToolRepository interface.
type MockToolRepository struct {
	mock.Mock
}

func (m *MockToolRepository) Save(ctx context.Context, tools []domain.Tool, details []usecase.InvocationDetails) error {
	args := m.Called(ctx, tools, details)
	return args.Error(0)
}

func (m *MockToolRepository) List(ctx context.Context) ([]domain.Tool, error) {
	args := m.Called(ctx)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.([]domain.Tool), args.Error(1)
}

func (m *MockToolRepository) FindToolByName(ctx context.Context, name string) (*domain.Tool, error) {
	args := m.Called(ctx, name)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.(*domain.Tool), args.Error(1)
}

func (m *MockToolRepository) FindInvocationDetailsByName(ctx context.Context, name string) (*usecase.InvocationDetails, error) {
	args := m.Called(ctx, name)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.(*usecase.InvocationDetails), args.Error(1)
}

// MockToolInvoker is a mock implementation of the ToolInvoker interface.
type MockToolInvoker struct {
	mock.Mock
}

func (m *MockToolInvoker) Invoke(ctx context.Context, details usecase.InvocationDetails, params map[string]any) (*usecase.Response, error) {
	args := m.Called(ctx, details, params)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.(*usecase.Response), args.Error(1)
}

// MockSchemaFetcher is a mock implementation of the SchemaFetcher interface.
type MockSchemaFetcher struct {
	mock.Mock
}

func (m *MockSchemaFetcher) Fetch(ctx context.Context, src string) (domain.APISchema, error) {
	args := m.Called(ctx, src)
	return args.Get(0).(domain.APISchema), args.Error(1)
}

func (m *MockSchemaFetcher) FetchWithConfig(ctx context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	args := m.Called(ctx, config)
	return args.Get(0).(domain.APISchema), args.Error(1)
}

// MockToolGenerator is a mock implementation of the ToolGenerator interface.
type MockToolGenerator struct {
	mock.Mock
}

func (m *MockToolGenerator) Generate(schema domain.APISchema) ([]domain.Tool, []usecase.InvocationDetails, error) {
	args := m.Called(schema)
	var tools []domain.Tool
	var details []usecase.InvocationDetails
	if v := args.Get(0); v != nil {
		tools = v.([]domain.Tool)
	}
	if v := args.Get(1); v != nil {
		details = v.([]usecase.InvocationDetails)
	}
	return tools, details, args.Error(2)
}

// MockToolPublisher is a mock implementation of the ToolPublisher interface.
type MockToolPublisher struct {
	mock.Mock
}

func (m *MockToolPublisher) Publish(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockMetrics is a mock implementation of the Metrics interface.
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	m.Called(tool, outcome, elapsed)
}

func (m *MockMetrics) SetCatalogueSize(n int) {
	m.Called(n)
}
