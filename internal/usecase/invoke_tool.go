package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/pkg/shared/mcpjsonrpc"
)

// InvocationDetails is the lookup entry of a tool: everything needed to call
// the operation behind it.
type InvocationDetails struct {
	// ToolName is the exposed name the entry is keyed by.
	ToolName string `json:"tool_name"`

	// OperationID is the operation's identifier as declared in the document.
	OperationID string `json:"operation_id"`

	// Host is scheme://host[:port] of the target API.
	Host string `json:"host"`

	// BasePath prefixes HTTPPath (e.g. "/v1").
	BasePath string `json:"base_path,omitempty"`

	HTTPMethod domain.HTTPMethod `json:"http_method"`

	// HTTPPath is the templated request path (e.g. "/users/{userId}").
	HTTPPath string `json:"http_path"`

	PathParams   []string `json:"path_params,omitempty"`
	QueryParams  []string `json:"query_params,omitempty"`
	HeaderParams []string `json:"header_params,omitempty"`
	CookieParams []string `json:"cookie_params,omitempty"`

	// BodyParam names the argument sent as the whole body. When empty and
	// ContentType is set, every argument that is not a parameter goes into the body.
	BodyParam string `json:"body_param,omitempty"`

	// ContentType is "application/json" or "multipart/form-data"; empty means no body.
	ContentType string `json:"content_type,omitempty"`

	// FileParams lists multipart fields whose values are local file paths to upload.
	FileParams []string `json:"file_params,omitempty"`

	// Operation is the resolved operation object (*openapi3.Operation).
	Operation any `json:"-"`
}

// Response is a successful upstream reply.
type Response struct {
	Data    any
	Status  int
	Headers http.Header
}

// ExecutionError is a structured upstream failure. Response is set when the
// API answered; Data carries any extra detail the invoker could attach.
type ExecutionError struct {
	Response *Response
	Data     any
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("upstream returned HTTP %d", e.Response.Status)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "upstream call failed"
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Payload returns the response body, else the attached data, else an empty object.
func (e *ExecutionError) Payload() any {
	if e.Response != nil && e.Response.Data != nil {
		return e.Response.Data
	}
	if e.Data != nil {
		return e.Data
	}
	return map[string]any{}
}

// MethodNotFoundError is returned for a tool name missing from the catalogue.
type MethodNotFoundError struct {
	Name string
}

func (e *MethodNotFoundError) Error() string { return fmt.Sprintf("Method %s not found", e.Name) }

func (e *MethodNotFoundError) Code() int { return mcpjsonrpc.CodeMethodNotFound }

func (e *MethodNotFoundError) Unwrap() error { return ErrToolNotFound }

// ToolInvoker executes the upstream API call of a tool.
type ToolInvoker interface {
	Invoke(ctx context.Context, details InvocationDetails, params map[string]any) (*Response, error)
}

// InvokeToolUseCase answers tools/call requests.
type InvokeToolUseCase struct {
	repository ToolRepository
	invoker    ToolInvoker
	metrics    Metrics
	logger     *slog.Logger
}

// NewInvokeToolUseCase creates a new InvokeToolUseCase. metrics may be nil.
func NewInvokeToolUseCase(repo ToolRepository, invoker ToolInvoker, metrics Metrics, logger *slog.Logger) *InvokeToolUseCase {
	if metrics == nil {
		metrics = NoopMetrics
	}
	return &InvokeToolUseCase{
		repository: repo,
		invoker:    invoker,
		metrics:    metrics,
		logger:     logger.With("usecase", "InvokeTool"),
	}
}

// Execute looks the tool up, repairs its arguments, calls the upstream API and
// wraps the outcome into a single text content item.
//
// Upstream failures reported as *ExecutionError become a successful result
// whose text is {"status":"error", ...payload}. Unknown tools yield a
// *MethodNotFoundError. Any other error is returned as is.
func (uc *InvokeToolUseCase) Execute(ctx context.Context, toolName string, params map[string]any) (*mcp.CallToolResult, error) {
	log := uc.logger.With(slog.String("tool_name", toolName), slog.String("call_id", uuid.NewString()))
	ctx, span := otel.Tracer("restmcp/usecase").Start(ctx, "InvokeTool")
	defer span.End()
	span.SetAttributes(attribute.String("mcp.tool", toolName))

	start := time.Now()
	outcome := "error"
	defer func() { uc.metrics.ObserveToolCall(toolName, outcome, time.Since(start)) }()

	details, err := uc.repository.FindInvocationDetailsByName(ctx, toolName)
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			log.Warn("Tool not found")
			outcome = "not_found"
			span.SetStatus(codes.Error, "tool not found")
			return nil, &MethodNotFoundError{Name: toolName}
		}
		log.Error("Failed to look up tool", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up tool %s: %w", toolName, err)
	}
	span.SetAttributes(
		attribute.String("http.method", string(details.HTTPMethod)),
		attribute.String("http.route", details.HTTPPath),
	)

	args := domain.RecoverArguments(params)
	log.Debug("Invoking upstream operation",
		slog.String("method", string(details.HTTPMethod)),
		slog.String("path", details.HTTPPath))

	resp, err := uc.invoker.Invoke(ctx, *details, args)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			log.Warn("Upstream call failed", slog.Any("error", err))
			outcome = "upstream_error"
			span.SetStatus(codes.Error, err.Error())
			return errorResult(execErr.Payload())
		}
		log.Error("Failed to invoke upstream operation", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	text, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response of tool %s: %w", toolName, err)
	}
	outcome = "success"
	log.Info("Tool invocation successful", slog.Int("status", resp.Status))
	return mcp.NewToolResultText(string(text)), nil
}

func errorResult(payload any) (*mcp.CallToolResult, error) {
	body := map[string]any{"status": "error"}
	if m, ok := payload.(map[string]any); ok {
		for k, v := range m {
			body[k] = v
		}
	} else {
		body["data"] = payload
	}
	text, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode error payload: %w", err)
	}
	return mcp.NewToolResultText(string(text)), nil
}
