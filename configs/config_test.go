package configs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restmcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "API", cfg.Namespace)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ":8081", cfg.AdminAddr)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientTimeout)
	assert.Equal(t, "Notion-Version", cfg.APIVersionHeader)
	assert.Equal(t, "2022-06-28", cfg.APIVersion)
	assert.Zero(t, cfg.RateLimit)
	assert.Nil(t, cfg.DescriptionPrefixes)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("RESTMCP_DOCUMENT", "https://api.example.com/openapi.json")
	t.Setenv("RESTMCP_HEADERS", `{"Authorization":"Bearer abc","X-Tenant":"7"}`)
	t.Setenv("RESTMCP_NAMESPACE", "")
	t.Setenv("RESTMCP_RATE_LIMIT", "2.5")
	t.Setenv("RESTMCP_TRANSPORT", "http")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/openapi.json", cfg.Document)
	assert.Equal(t, HeaderMap{"Authorization": "Bearer abc", "X-Tenant": "7"}, cfg.Headers)
	assert.Equal(t, "", cfg.Namespace)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "http", cfg.Transport)
}

func TestLoad_InvalidHeaders(t *testing.T) {
	t.Setenv("RESTMCP_HEADERS", "Authorization: Bearer abc")

	_, err := Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "headers must be a JSON object of strings")
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
document: ./openapi.yaml
base_url: https://staging.example.com/v2
namespace: Notion
headers:
  Authorization: Bearer from-file
description_prefixes:
  Payments API: "Pay | "
`)
	t.Setenv("RESTMCP_CONFIG_FILE", path)
	t.Setenv("RESTMCP_BASE_URL", "https://prod.example.com/v2")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "./openapi.yaml", cfg.Document)
	assert.Equal(t, "https://prod.example.com/v2", cfg.BaseURL, "environment wins over file")
	assert.Equal(t, "Notion", cfg.Namespace)
	assert.Equal(t, HeaderMap{"Authorization": "Bearer from-file"}, cfg.Headers)
	assert.Equal(t, map[string]string{"Payments API": "Pay | "}, cfg.DescriptionPrefixes)
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("RESTMCP_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
	t.Run("bad yaml", func(t *testing.T) {
		t.Setenv("RESTMCP_CONFIG_FILE", writeConfig(t, "document: [unterminated"))
		_, err := Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal config file")
	})
}

func TestConfig_RequestHeaders(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want map[string]string
	}{
		{
			name: "explicit headers win",
			cfg: Config{
				Headers:  HeaderMap{"X-Api-Key": "k"},
				APIToken: "ignored", APIVersionHeader: "Notion-Version", APIVersion: "2022-06-28",
			},
			want: map[string]string{"X-Api-Key": "k"},
		},
		{
			name: "token with version header",
			cfg:  Config{APIToken: "secret", APIVersionHeader: "Notion-Version", APIVersion: "2022-06-28"},
			want: map[string]string{"Authorization": "Bearer secret", "Notion-Version": "2022-06-28"},
		},
		{
			name: "token without version",
			cfg:  Config{APIToken: "secret", APIVersionHeader: "Notion-Version"},
			want: map[string]string{"Authorization": "Bearer secret"},
		},
		{
			name: "nothing configured",
			cfg:  Config{APIVersionHeader: "Notion-Version", APIVersion: "2022-06-28"},
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.RequestHeaders())
		})
	}
}

func TestConfig_ParsedLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "info": slog.LevelInfo, "bogus": slog.LevelInfo,
	} {
		c := Config{LogLevel: in}
		assert.Equal(t, want, c.ParsedLogLevel(), in)
	}
}
