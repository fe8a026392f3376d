package httpinvoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

// Invoker implements the usecase.ToolInvoker interface using standard net/http.
type Invoker struct {
	client  *http.Client
	headers map[string]string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithHeaders sends the given headers on every request. Header parameters of
// a tool call override them.
func WithHeaders(headers map[string]string) Option {
	return func(i *Invoker) {
		i.headers = headers
	}
}

// WithRateLimit caps outgoing requests at rps per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(i *Invoker) {
		if rps <= 0 {
			i.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		i.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a new HTTP Invoker.
func New(client *http.Client, logger *slog.Logger, opts ...Option) *Invoker {
	if client == nil {
		client = http.DefaultClient
	}
	i := &Invoker{
		client: client,
		logger: logger.With("component", "http_invoker"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke executes the upstream HTTP call of a tool.
//
// A reply outside 2xx is returned as *usecase.ExecutionError carrying the
// decoded body. Failures before a reply arrives are returned as is.
func (i *Invoker) Invoke(ctx context.Context, details usecase.InvocationDetails, params map[string]any) (*usecase.Response, error) {
	log := i.logger.With(
		slog.String("tool_name", details.ToolName),
		slog.String("method", string(details.HTTPMethod)),
		slog.String("path", details.HTTPPath),
	)
	if details.Host == "" {
		return nil, fmt.Errorf("no base URL configured for tool %s", details.ToolName)
	}

	// --- 1. Construct URL with Path Parameters --- //
	remaining := make(map[string]any, len(params))
	for k, v := range params {
		remaining[k] = v
	}
	processedPath := details.HTTPPath
	for _, name := range details.PathParams {
		v, ok := remaining[name]
		if !ok {
			return nil, fmt.Errorf("missing path parameter %q", name)
		}
		processedPath = strings.ReplaceAll(processedPath, "{"+name+"}", url.PathEscape(stringify(v)))
		delete(remaining, name)
	}
	target, err := url.Parse(strings.TrimRight(details.Host, "/") + details.BasePath + processedPath)
	if err != nil {
		log.Error("Failed to build request URL", slog.Any("error", err))
		return nil, fmt.Errorf("invalid request URL for tool %s: %w", details.ToolName, err)
	}

	// --- 2. Query, header and cookie parameters --- //
	query := target.Query()
	for _, name := range details.QueryParams {
		v, ok := remaining[name]
		if !ok {
			continue
		}
		delete(remaining, name)
		if list, isList := v.([]any); isList {
			for _, item := range list {
				query.Add(name, stringify(item))
			}
			continue
		}
		query.Add(name, stringify(v))
	}
	target.RawQuery = query.Encode()

	headers := make(map[string]string)
	for _, name := range details.HeaderParams {
		if v, ok := remaining[name]; ok {
			headers[name] = stringify(v)
			delete(remaining, name)
		}
	}
	var cookies []*http.Cookie
	for _, name := range details.CookieParams {
		if v, ok := remaining[name]; ok {
			cookies = append(cookies, &http.Cookie{Name: name, Value: stringify(v)})
			delete(remaining, name)
		}
	}

	// --- 3. Construct Request Body --- //
	body, contentType, err := i.buildBody(log, details, remaining)
	if err != nil {
		return nil, err
	}

	// --- 4. Create HTTP Request --- //
	ctx, span := otel.Tracer("restmcp/httpinvoker").Start(ctx, string(details.HTTPMethod)+" "+details.HTTPPath,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", string(details.HTTPMethod)),
			attribute.String("url.full", target.String()),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, string(details.HTTPMethod), target.String(), body)
	if err != nil {
		log.Error("Failed to create HTTP request", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range i.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	log = log.With(slog.String("url", target.String()))

	// --- 5. Execute Request --- //
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	log.Debug("Executing HTTP request")
	resp, err := i.client.Do(req)
	if err != nil {
		log.Error("HTTP request failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("request execution failed: %w", err)
	}
	defer resp.Body.Close()

	// --- 6. Process Response --- //
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", slog.Any("error", err))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	result := &usecase.Response{
		Data:    decodeBody(resp.Header.Get("Content-Type"), raw),
		Status:  resp.StatusCode,
		Headers: resp.Header,
	}
	log = log.With(slog.Int("status_code", resp.StatusCode))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Received non-success status code")
		span.SetStatus(codes.Error, resp.Status)
		return nil, &usecase.ExecutionError{
			Response: result,
			Err:      fmt.Errorf("HTTP %d from %s %s", resp.StatusCode, details.HTTPMethod, details.HTTPPath),
		}
	}
	log.Debug("Received HTTP response")
	return result, nil
}

func (i *Invoker) buildBody(log *slog.Logger, details usecase.InvocationDetails, remaining map[string]any) (io.Reader, string, error) {
	if details.ContentType == "" {
		if len(remaining) > 0 {
			log.Warn("Arguments not declared by the operation are ignored", slog.Int("count", len(remaining)))
		}
		return nil, "", nil
	}
	if details.HTTPMethod == domain.MethodGet {
		return nil, "", nil
	}

	switch details.ContentType {
	case "multipart/form-data":
		return buildMultipart(details.FileParams, remaining)
	default:
		var payload any = remaining
		if details.BodyParam != "" {
			v, ok := remaining[details.BodyParam]
			if !ok {
				return nil, "", nil
			}
			payload = v
		} else if len(remaining) == 0 {
			return nil, "", nil
		}
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error("Failed to marshal request body", slog.Any("error", err))
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewReader(data), details.ContentType, nil
	}
}

// buildMultipart writes every argument as a form field. File fields hold
// local paths (one or a list) whose contents are uploaded.
func buildMultipart(fileParams []string, fields map[string]any) (io.Reader, string, error) {
	isFile := make(map[string]bool, len(fileParams))
	for _, name := range fileParams {
		isFile[name] = true
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, v := range fields {
		if !isFile[name] {
			if err := w.WriteField(name, stringify(v)); err != nil {
				return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
			}
			continue
		}
		paths := []any{v}
		if list, ok := v.([]any); ok {
			paths = list
		}
		for _, p := range paths {
			if err := attachFile(w, name, stringify(p)); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file for %s: %w", field, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return nil
}

// decodeBody returns JSON bodies decoded and anything else as text.
func decodeBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return ""
	}
	if strings.Contains(contentType, "json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

// stringify renders an argument for a URL, header or form field. Structured
// values are sent as JSON text.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
