package openapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

// SchemaFetcher implements usecase.SchemaFetcher for OpenAPI documents held in
// local files or served over HTTP(S).
type SchemaFetcher struct {
	httpClient *http.Client
	discoverer *Discoverer
	logger     *slog.Logger
}

// NewSchemaFetcher creates a new OpenAPI SchemaFetcher.
func NewSchemaFetcher(client *http.Client, logger *slog.Logger) *SchemaFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &SchemaFetcher{
		httpClient: client,
		discoverer: NewDiscoverer(client, logger),
		logger:     logger.With("component", "openapi_fetcher"),
	}
}

// Fetch loads a document from a URL or local file path.
func (f *SchemaFetcher) Fetch(ctx context.Context, src string) (domain.APISchema, error) {
	return f.FetchWithConfig(ctx, usecase.SchemaSourceConfig{URL: src})
}

// FetchWithConfig loads a document, sending the configured headers when the
// source is a URL. A base URL without a document path is probed for one.
func (f *SchemaFetcher) FetchWithConfig(ctx context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	log := f.logger.With(slog.String("source", config.URL))

	var raw []byte
	var err error
	location := config.URL
	u, parseErr := url.ParseRequestURI(config.URL)
	if parseErr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		location = f.discoverer.Resolve(ctx, config.URL, config.Headers)
		raw, err = f.download(ctx, location, config.Headers)
	} else {
		log.Debug("Assuming local file path")
		raw, err = os.ReadFile(config.URL)
		if err != nil {
			err = fmt.Errorf("failed to read schema from file %s: %w", config.URL, err)
		}
	}
	if err != nil {
		log.Error("Failed to fetch OpenAPI schema", slog.Any("error", err))
		return domain.APISchema{}, err
	}

	doc, err := Parse(ctx, raw)
	if err != nil {
		log.Error("Failed to parse OpenAPI schema data", slog.Any("error", err))
		return domain.APISchema{}, fmt.Errorf("failed to parse OpenAPI schema from %s: %w", config.URL, err)
	}

	log.Info("Successfully fetched and parsed OpenAPI schema", slog.String("location", location))
	return domain.APISchema{
		Source:     location,
		Type:       domain.SchemaTypeOpenAPI,
		RawData:    raw,
		ParsedData: doc,
	}, nil
}

// Parse loads a JSON or YAML document. Validation problems are only logged by
// callers that care; translation tolerates them.
func Parse(ctx context.Context, raw []byte) (*openapi3.T, error) {
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	return loader.LoadFromData(raw)
}

func (f *SchemaFetcher) download(ctx context.Context, location string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", location, err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schema from URL %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch schema from URL %s: status %s", location, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", location, err)
	}
	return body, nil
}
