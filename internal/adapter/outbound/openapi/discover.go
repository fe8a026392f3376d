package openapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// wellKnownPaths are the document locations probed under a bare base URL.
var wellKnownPaths = []string{
	"/openapi.json",
	"/openapi.yaml",
	"/docs/openapi.json",
	"/v3/api-docs",
	"/api-docs",
	"/api/openapi.json",
	"/api/v1/openapi.json",
	"/swagger/v1/swagger.json",
	"/.well-known/openapi.json",
}

const probeTimeout = 5 * time.Second

// Discoverer finds the document behind a base URL.
type Discoverer struct {
	client *http.Client
	logger *slog.Logger
}

// NewDiscoverer creates a new Discoverer.
func NewDiscoverer(client *http.Client, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		client: client,
		logger: logger.With("component", "openapi_discoverer"),
	}
}

// Resolve returns source unchanged when it already names a document, else the
// first well-known path under it that serves one. When nothing is found the
// source is returned and the caller's fetch reports the failure.
func (d *Discoverer) Resolve(ctx context.Context, source string, headers map[string]string) string {
	if looksLikeDocument(source) {
		return source
	}
	log := d.logger.With(slog.String("base_url", source))
	base := strings.TrimRight(source, "/")
	for _, p := range wellKnownPaths {
		candidate := base + p
		if d.probe(ctx, candidate, headers) {
			log.Info("Discovered OpenAPI document", slog.String("url", candidate))
			return candidate
		}
	}
	log.Warn("No OpenAPI document found under base URL, using it as is")
	return source
}

func (d *Discoverer) probe(ctx context.Context, candidate string, headers map[string]string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json, application/vnd.oai.openapi+json, application/yaml")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug("Probe failed", slog.String("url", candidate), slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	ct := resp.Header.Get("Content-Type")
	return strings.Contains(ct, "json") || strings.Contains(ct, "yaml")
}

func looksLikeDocument(source string) bool {
	lower := strings.ToLower(source)
	for _, hint := range []string{".json", ".yaml", ".yml", "openapi", "swagger", "api-docs"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
