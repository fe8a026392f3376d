// Package mcpserver binds the catalogue use cases to an mcp-go server.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

// ToolSetter is the part of *server.MCPServer the Binder drives.
type ToolSetter interface {
	SetTools(tools ...server.ServerTool)
}

// Binder publishes the stored catalogue to an MCP server and routes its tool
// calls to the invoke use case. It implements usecase.ToolPublisher.
type Binder struct {
	target ToolSetter
	serve  *usecase.ServeToolsUseCase
	invoke *usecase.InvokeToolUseCase
	known  atomic.Pointer[map[string]struct{}]
	logger *slog.Logger
}

// NewBinder creates a Binder. Call Attach (or NewServer) before Publish.
func NewBinder(serve *usecase.ServeToolsUseCase, invoke *usecase.InvokeToolUseCase, logger *slog.Logger) *Binder {
	b := &Binder{
		serve:  serve,
		invoke: invoke,
		logger: logger.With("component", "mcp_binder"),
	}
	b.known.Store(&map[string]struct{}{})
	return b
}

// NewServer creates an mcp-go server wired to b.
func NewServer(name, version string, b *Binder) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(b.Hooks()),
	)
	b.Attach(s)
	return s
}

// Attach sets the server tools are published to.
func (b *Binder) Attach(target ToolSetter) {
	b.target = target
}

// Publish replaces the server's tool set with the current catalogue.
func (b *Binder) Publish(ctx context.Context) error {
	if b.target == nil {
		return errors.New("mcp binder has no server attached")
	}
	tools, err := b.serve.Execute(ctx)
	if err != nil {
		return err
	}

	serverTools := make([]server.ServerTool, len(tools))
	names := make(map[string]struct{}, len(tools))
	for i, t := range tools {
		serverTools[i] = server.ServerTool{Tool: t, Handler: b.handleCall}
		names[t.Name] = struct{}{}
	}
	b.target.SetTools(serverTools...)
	b.known.Store(&names)

	b.logger.Info("Published tools", slog.Int("count", len(serverTools)))
	return nil
}

// Hooks returns server hooks that answer calls to unknown tools with
// "Method <name> not found".
func (b *Binder) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddOnRequestInitialization(b.rejectUnknownTool)
	return hooks
}

func (b *Binder) handleCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return b.invoke.Execute(ctx, req.Params.Name, req.GetArguments())
}

func (b *Binder) rejectUnknownTool(ctx context.Context, id any, message any) error {
	raw, ok := message.(json.RawMessage)
	if !ok {
		return nil
	}
	var req struct {
		Method domain.RequestKind `json:"method"`
		Params struct {
			Name string `json:"name"`
		} `json:"params"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil
	}
	switch req.Method {
	case domain.RequestListTools:
		b.logger.Debug("Listing tools", slog.Int("count", len(*b.known.Load())))
	case domain.RequestCallTool:
		if _, found := (*b.known.Load())[req.Params.Name]; !found {
			b.logger.Warn("Call to unknown tool rejected", slog.String("tool_name", req.Params.Name))
			return &usecase.MethodNotFoundError{Name: req.Params.Name}
		}
	}
	return nil
}
