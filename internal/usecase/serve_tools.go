package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/i2y/restmcp/internal/domain"
)

// ServeToolsUseCase answers tools/list requests.
type ServeToolsUseCase struct {
	repository ToolRepository
	logger     *slog.Logger
}

// NewServeToolsUseCase creates a new ServeToolsUseCase.
func NewServeToolsUseCase(repository ToolRepository, logger *slog.Logger) *ServeToolsUseCase {
	return &ServeToolsUseCase{
		repository: repository,
		logger:     logger.With("usecase", "ServeTools"),
	}
}

// Execute returns the catalogue as MCP tools, in catalogue order. Each tool
// carries its input schema unchanged plus a title and read-only/destructive
// hints derived from the backing operation.
func (uc *ServeToolsUseCase) Execute(ctx context.Context) ([]mcp.Tool, error) {
	tools, err := uc.repository.List(ctx)
	if err != nil {
		uc.logger.Error("Failed to list tools from repository", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list tools from repository: %w", err)
	}

	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		details, err := uc.repository.FindInvocationDetailsByName(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("catalogue has no operation for tool %s: %w", t.Name, err)
		}
		tool, err := toMCPTool(t, domain.AnnotationsFor(details.OperationID, details.HTTPMethod))
		if err != nil {
			return nil, err
		}
		out = append(out, tool)
	}
	uc.logger.Debug("Listed tools", slog.Int("count", len(out)))
	return out, nil
}

func toMCPTool(t domain.Tool, a domain.Annotations) (mcp.Tool, error) {
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("failed to encode input schema of tool %s: %w", t.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(t.Name, t.Description, raw)
	tool.Annotations = mcp.ToolAnnotation{Title: a.Title}
	if a.ReadOnlyHint {
		tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(true)
	}
	if a.DestructiveHint {
		tool.Annotations.DestructiveHint = mcp.ToBoolPtr(true)
	}
	return tool, nil
}
