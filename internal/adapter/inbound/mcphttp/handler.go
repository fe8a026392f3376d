package mcphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
	"github.com/i2y/restmcp/pkg/shared/mcpjsonrpc"
)

// Syncer rebuilds the catalogue from a source.
type Syncer interface {
	Execute(ctx context.Context, source usecase.SchemaSourceConfig) (int, error)
}

// Checker verifies the stored catalogue.
type Checker interface {
	Execute(ctx context.Context) (usecase.CheckReport, error)
}

// Handlers struct holds dependencies for the admin HTTP handlers.
type Handlers struct {
	syncer        Syncer
	checker       Checker
	repository    usecase.ToolRepository
	defaultSource usecase.SchemaSourceConfig
	metrics       http.Handler
	logger        *slog.Logger
}

// NewHandlers creates a new Handlers struct. defaultSource is synced when a
// sync request names no source. metrics may be nil.
func NewHandlers(
	syncer Syncer,
	checker Checker,
	repository usecase.ToolRepository,
	defaultSource usecase.SchemaSourceConfig,
	metrics http.Handler,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		syncer:        syncer,
		checker:       checker,
		repository:    repository,
		defaultSource: defaultSource,
		metrics:       metrics,
		logger:        logger.With("component", "mcphttp_handler"),
	}
}

// RegisterAdminRoutes sets up the HTTP routes for admin endpoints.
func (h *Handlers) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/sync", h.handleSyncSchema)
	mux.HandleFunc("GET /admin/tools", h.handleListTools)
	mux.HandleFunc("GET /admin/check", h.handleCheck)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// SyncRequest is the optional JSON body of POST /admin/sync.
type SyncRequest struct {
	Source  string            `json:"source"`
	Headers map[string]string `json:"headers,omitempty"`
}

// SyncResponse reports a finished sync.
type SyncResponse struct {
	Source string `json:"source"`
	Tools  int    `json:"tools"`
}

// ToolView is one catalogue entry as served by GET /admin/tools.
type ToolView struct {
	domain.Tool
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (h *Handlers) handleSyncSchema(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Failed to decode sync request body", slog.Any("error", err))
		h.writeError(w, http.StatusBadRequest, &mcpjsonrpc.Error{
			Code:    mcpjsonrpc.CodeParseError,
			Message: fmt.Sprintf("Invalid request body: %v", err),
		})
		return
	}

	source := h.defaultSource
	if req.Source != "" {
		source = usecase.SchemaSourceConfig{URL: req.Source, Headers: req.Headers}
	}
	if source.URL == "" {
		h.writeError(w, http.StatusBadRequest, &mcpjsonrpc.Error{
			Code:    mcpjsonrpc.CodeInvalidParams,
			Message: "Missing 'source' field in request body",
		})
		return
	}

	h.logger.Info("Received sync request", slog.String("source", source.URL))
	count, err := h.syncer.Execute(r.Context(), source)
	if err != nil {
		h.logger.Error("Failed to sync schema", slog.String("source", source.URL), slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, &mcpjsonrpc.Error{
			Code:    mcpjsonrpc.CodeServerErrorSyncFailed,
			Message: fmt.Sprintf("Failed to sync schema: %v", err),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, SyncResponse{Source: source.URL, Tools: count})
}

func (h *Handlers) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.repository.List(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, mcpjsonrpc.FromError(err))
		return
	}
	views := make([]ToolView, 0, len(tools))
	for _, t := range tools {
		v := ToolView{Tool: t}
		if d, err := h.repository.FindInvocationDetailsByName(r.Context(), t.Name); err == nil {
			v.Method, v.Path = string(d.HTTPMethod), d.HTTPPath
		}
		views = append(views, v)
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) handleCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.checker.Execute(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, mcpjsonrpc.FromError(err))
		return
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusConflict
	}
	h.writeJSON(w, status, report)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, rpcErr *mcpjsonrpc.Error) {
	h.writeJSON(w, status, map[string]any{"error": rpcErr})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", slog.Any("error", err))
	}
}
