package github

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/i2y/restmcp/internal/adapter/outbound/openapi"
	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

// Fetcher fetches OpenAPI documents stored in GitHub repositories.
type Fetcher struct {
	client *GHClient
	logger *slog.Logger
}

// NewFetcher creates a new GitHub document fetcher.
func NewFetcher(client *GHClient, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = NewGHClient(nil)
	}
	return &Fetcher{
		client: client,
		logger: logger.With("component", "github_fetcher"),
	}
}

// Fetch retrieves and parses a document from a github:// source.
func (f *Fetcher) Fetch(ctx context.Context, source string) (domain.APISchema, error) {
	log := f.logger.With(slog.String("source", source))
	if !IsGitHubURL(source) {
		return domain.APISchema{}, fmt.Errorf("not a GitHub URL: %s", source)
	}

	content, err := f.client.FetchFile(ctx, source)
	if err != nil {
		log.Error("Failed to fetch file from GitHub", slog.Any("error", err))
		return domain.APISchema{}, fmt.Errorf("failed to fetch file from GitHub: %w", err)
	}
	doc, err := openapi.Parse(ctx, content)
	if err != nil {
		log.Error("Failed to parse OpenAPI schema data", slog.Any("error", err))
		return domain.APISchema{}, fmt.Errorf("failed to parse OpenAPI schema from %s: %w", source, err)
	}

	log.Info("Successfully fetched and parsed OpenAPI schema from GitHub")
	return domain.APISchema{
		Source:     source,
		Type:       domain.SchemaTypeGitHub,
		RawData:    content,
		ParsedData: doc,
	}, nil
}

// FetchWithConfig ignores headers: gh carries its own credentials.
func (f *Fetcher) FetchWithConfig(ctx context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	return f.Fetch(ctx, config.URL)
}

// ReadFile reads a local file or a github:// source. Used for config files.
func ReadFile(ctx context.Context, path string) ([]byte, error) {
	if IsGitHubURL(path) {
		content, err := NewGHClient(nil).FetchFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch config from GitHub: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return content, nil
}
