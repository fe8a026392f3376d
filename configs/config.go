package configs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i2y/restmcp/internal/adapter/outbound/github"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "restmcp"

// HeaderMap is a set of HTTP headers decoded from a JSON object, e.g.
// RESTMCP_HEADERS='{"Authorization":"Bearer x","Notion-Version":"2022-06-28"}'.
type HeaderMap map[string]string

// Decode implements envconfig.Decoder.
func (h *HeaderMap) Decode(value string) error {
	if strings.TrimSpace(value) == "" {
		*h = nil
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return fmt.Errorf("headers must be a JSON object of strings: %w", err)
	}
	*h = m
	return nil
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	Document            string            `yaml:"document"`
	BaseURL             string            `yaml:"base_url"`
	Namespace           *string           `yaml:"namespace"`
	Headers             map[string]string `yaml:"headers"`
	DescriptionPrefixes map[string]string `yaml:"description_prefixes"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "RESTMCP_", overriding file settings.
type Config struct {
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	// Document is a URL, a local path or a github://owner/repo/path[@ref] source.
	Document string `envconfig:"DOCUMENT"`
	// BaseURL overrides the servers block of the document.
	BaseURL   string `envconfig:"BASE_URL"`
	Namespace string `envconfig:"NAMESPACE" default:"API"`

	// Headers wins over APIToken when non-empty.
	Headers          HeaderMap `envconfig:"HEADERS"`
	APIToken         string    `envconfig:"API_TOKEN"`
	APIVersionHeader string    `envconfig:"API_VERSION_HEADER" default:"Notion-Version"`
	APIVersion       string    `envconfig:"API_VERSION" default:"2022-06-28"`

	// DescriptionPrefixes is file-only. Nil keeps the built-in table.
	DescriptionPrefixes map[string]string `ignored:"true"`

	Transport  string `envconfig:"TRANSPORT" default:"stdio"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	AdminAddr  string `envconfig:"ADMIN_ADDR" default:":8081"`
	// LogFile receives logs in stdio mode, where stdout carries the protocol.
	LogFile string `envconfig:"LOG_FILE" default:"/tmp/restmcp.log"`

	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	RateLimit         float64       `envconfig:"RATE_LIMIT" default:"0"`
	RateBurst         int           `envconfig:"RATE_BURST" default:"1"`

	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	ServerIdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`

	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string `envconfig:"LOG_LEVEL" default:"info"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RequestHeaders returns the static headers sent with every upstream call:
// Headers when set, else a bearer token plus the API version header when a
// token is configured, else none.
func (c *Config) RequestHeaders() map[string]string {
	if len(c.Headers) > 0 {
		out := make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out[k] = v
		}
		return out
	}
	if c.APIToken == "" {
		return map[string]string{}
	}
	out := map[string]string{"Authorization": "Bearer " + c.APIToken}
	if c.APIVersionHeader != "" && c.APIVersion != "" {
		out[c.APIVersionHeader] = c.APIVersion
	}
	return out
}

// Load reads environment variables (to get the file path), then the YAML file
// when one is named. Environment variables win over file values.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if cfg.ConfigFilePath == "" {
		return &cfg, nil
	}

	raw, err := github.ReadFile(ctx, cfg.ConfigFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", cfg.ConfigFilePath, err)
	}
	var fileCfg FileConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", cfg.ConfigFilePath, err)
	}
	slog.Info("Loaded configuration from file.", "path", cfg.ConfigFilePath)
	cfg.applyFile(fileCfg)
	return &cfg, nil
}

// applyFile copies file values into fields whose variable is unset.
func (c *Config) applyFile(f FileConfig) {
	if f.Document != "" && !envSet("DOCUMENT") {
		c.Document = f.Document
	}
	if f.BaseURL != "" && !envSet("BASE_URL") {
		c.BaseURL = f.BaseURL
	}
	if f.Namespace != nil && !envSet("NAMESPACE") {
		c.Namespace = *f.Namespace
	}
	if len(f.Headers) > 0 && !envSet("HEADERS") {
		c.Headers = f.Headers
	}
	c.DescriptionPrefixes = f.DescriptionPrefixes
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(strings.ToUpper(EnvPrefix) + "_" + key)
	return ok
}
