package openapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

const minimalJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "Minimal", "version": "1"},
  "paths": {"/ping": {"get": {"operationId": "ping", "responses": {"200": {"description": "pong"}}}}}
}`

type recordingServer struct {
	mu      sync.Mutex
	paths   []string
	headers []http.Header
}

func (s *recordingServer) handler(serve map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()

		body, ok := serve[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestSchemaFetcher_DirectURL(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(rec.handler(map[string]string{"/specs/openapi.json": minimalJSON}))
	defer srv.Close()

	f := NewSchemaFetcher(srv.Client(), testLogger())
	schema, err := f.FetchWithConfig(context.Background(), usecase.SchemaSourceConfig{
		URL:     srv.URL + "/specs/openapi.json",
		Headers: map[string]string{"Authorization": "Bearer secret"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SchemaTypeOpenAPI, schema.Type)
	assert.Equal(t, srv.URL+"/specs/openapi.json", schema.Source)
	assert.JSONEq(t, minimalJSON, string(schema.RawData))
	doc, ok := schema.ParsedData.(*openapi3.T)
	require.True(t, ok)
	assert.Equal(t, "Minimal", doc.Info.Title)

	require.Equal(t, []string{"/specs/openapi.json"}, rec.paths)
	assert.Equal(t, "Bearer secret", rec.headers[0].Get("Authorization"))
}

func TestSchemaFetcher_DiscoversDocument(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(rec.handler(map[string]string{"/v3/api-docs": minimalJSON}))
	defer srv.Close()

	f := NewSchemaFetcher(srv.Client(), testLogger())
	schema, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/v3/api-docs", schema.Source)

	assert.Equal(t, []string{
		"/openapi.json",
		"/openapi.yaml",
		"/docs/openapi.json",
		"/v3/api-docs",
		"/v3/api-docs",
	}, rec.paths)
}

func TestSchemaFetcher_NotFound(t *testing.T) {
	rec := &recordingServer{}
	srv := httptest.NewServer(rec.handler(nil))
	defer srv.Close()

	f := NewSchemaFetcher(srv.Client(), testLogger())
	_, err := f.Fetch(context.Background(), srv.URL+"/openapi.json")
	assert.ErrorContains(t, err, "404")
}

func TestSchemaFetcher_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(minimalJSON), 0o600))

	f := NewSchemaFetcher(nil, testLogger())
	schema, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, schema.Source)
	assert.NotNil(t, schema.ParsedData)

	_, err = f.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read schema from file")
}

func TestLooksLikeDocument(t *testing.T) {
	assert.True(t, looksLikeDocument("https://api.example.com/openapi.json"))
	assert.True(t, looksLikeDocument("https://api.example.com/swagger/v1/swagger.json"))
	assert.True(t, looksLikeDocument("https://api.example.com/spec.YAML"))
	assert.False(t, looksLikeDocument("https://api.example.com"))
	assert.False(t, looksLikeDocument("http://localhost:8080/v1"))
}
