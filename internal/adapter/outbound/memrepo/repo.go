package memrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

// InMemoryToolRepository holds the current catalogue in memory.
// Save swaps the whole catalogue at once, so readers see either the old or
// the new one and never a mix.
type InMemoryToolRepository struct {
	mu                sync.RWMutex
	order             []domain.Tool                        // catalogue order
	tools             map[string]domain.Tool               // Map tool name to Tool definition
	invocationDetails map[string]usecase.InvocationDetails // Map tool name to Invocation details
	logger            *slog.Logger
}

// NewInMemoryToolRepository creates a new in-memory repository.
func NewInMemoryToolRepository(logger *slog.Logger) *InMemoryToolRepository {
	return &InMemoryToolRepository{
		tools:             make(map[string]domain.Tool),
		invocationDetails: make(map[string]usecase.InvocationDetails),
		logger:            logger.With("component", "mem_repo"),
	}
}

// Save replaces the catalogue with tools and their invocation details.
// tools and details correspond by index. On error the previous catalogue is kept.
func (r *InMemoryToolRepository) Save(ctx context.Context, tools []domain.Tool, details []usecase.InvocationDetails) error {
	if len(tools) != len(details) {
		msg := fmt.Sprintf("mismatch between number of tools (%d) and invocation details (%d)", len(tools), len(details))
		r.logger.Error("Failed to save tools and details", slog.String("reason", msg))
		return fmt.Errorf("save failed: %s", msg)
	}

	order := make([]domain.Tool, 0, len(tools))
	byName := make(map[string]domain.Tool, len(tools))
	detailsByName := make(map[string]usecase.InvocationDetails, len(tools))
	for i, tool := range tools {
		if tool.Name == "" {
			r.logger.Warn("Skipping tool with empty name during save", slog.Int("index", i))
			continue
		}
		if _, dup := byName[tool.Name]; dup {
			r.logger.Error("Failed to save tools and details", slog.String("tool_name", tool.Name), slog.String("reason", "duplicate name"))
			return fmt.Errorf("save failed: duplicate tool name %q", tool.Name)
		}
		if details[i].ToolName != "" && details[i].ToolName != tool.Name {
			return fmt.Errorf("save failed: details at index %d belong to %q, not %q", i, details[i].ToolName, tool.Name)
		}
		order = append(order, tool)
		byName[tool.Name] = tool
		detailsByName[tool.Name] = details[i]
	}

	r.mu.Lock()
	r.order, r.tools, r.invocationDetails = order, byName, detailsByName
	r.mu.Unlock()

	r.logger.Info("Saved tools and invocation details", slog.Int("total_tools", len(order)))
	return nil
}

// List returns all stored tools in catalogue order.
func (r *InMemoryToolRepository) List(ctx context.Context) ([]domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.Tool, len(r.order))
	copy(list, r.order)
	r.logger.Debug("Listed tools from repository", slog.Int("count", len(list)))
	return list, nil
}

// FindToolByName retrieves a tool definition by its name.
func (r *InMemoryToolRepository) FindToolByName(ctx context.Context, name string) (*domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("Tool definition not found", slog.String("tool_name", name))
		return nil, usecase.ErrToolNotFound
	}
	return &tool, nil
}

// FindInvocationDetailsByName retrieves invocation details by tool name.
func (r *InMemoryToolRepository) FindInvocationDetailsByName(ctx context.Context, name string) (*usecase.InvocationDetails, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	details, ok := r.invocationDetails[name]
	if !ok {
		r.logger.Warn("Invocation details not found", slog.String("tool_name", name))
		return nil, usecase.ErrToolNotFound
	}
	return &details, nil
}
