package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/restmcp/configs"
)

const notesDocument = `
openapi: 3.0.3
info:
  title: Notes API
  version: 1.0.0
paths:
  /notes/{noteId}:
    get:
      operationId: getNote
      parameters:
        - name: noteId
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: The note
        "404":
          description: No such note
  /notes:
    post:
      operationId: createNote
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [title]
              properties:
                title:
                  type: string
                meta:
                  type: object
                  properties:
                    tags:
                      type: array
                      items:
                        type: string
      responses:
        "201":
          description: Created
`

type upstreamCall struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func startUpstream(t *testing.T, calls chan<- upstreamCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := upstreamCall{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &c.body)
		}
		calls <- c

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/notes/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"code":"object_not_found","message":"no note"}`)
		case r.Method == http.MethodGet:
			_, _ = io.WriteString(w, `{"id":"n1","title":"Hello"}`)
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"n2"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	calls := make(chan upstreamCall, 4)
	upstream := startUpstream(t, calls)

	docPath := filepath.Join(t.TempDir(), "notes.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte(notesDocument), 0o600))

	cfg, err := configs.Load(ctx)
	require.NoError(t, err)
	cfg.Document = docPath
	cfg.BaseURL = upstream.URL
	cfg.APIToken = "secret"
	cfg.Transport = ""

	logger, _ := newLogger(cfg, io.Discard)
	a := newApplication(cfg, logger)
	require.NoError(t, a.load(ctx))

	c, err := client.NewInProcessClient(a.mcp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Start(ctx))
	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "e2e", Version: "1.0.0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"API-createNote", "API-getNote"}, names)

	call := func(name string, args map[string]any) string {
		t.Helper()
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := c.CallTool(ctx, req)
		require.NoError(t, err)
		require.Len(t, res.Content, 1)
		text, ok := mcp.AsTextContent(res.Content[0])
		require.True(t, ok)
		return text.Text
	}

	t.Run("get", func(t *testing.T) {
		assert.JSONEq(t, `{"id":"n1","title":"Hello"}`, call("API-getNote", map[string]any{"noteId": "n1"}))
		got := <-calls
		assert.Equal(t, http.MethodGet, got.method)
		assert.Equal(t, "/notes/n1", got.path)
		assert.Equal(t, "Bearer secret", got.auth)
	})

	t.Run("stringified body argument is recovered", func(t *testing.T) {
		assert.JSONEq(t, `{"id":"n2"}`, call("API-createNote", map[string]any{
			"title": "Hi",
			"meta":  `{"tags":["a","b"]}`,
		}))
		got := <-calls
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, map[string]any{"title": "Hi", "meta": map[string]any{"tags": []any{"a", "b"}}}, got.body)
	})

	t.Run("upstream error", func(t *testing.T) {
		assert.JSONEq(t, `{"status":"error","code":"object_not_found","message":"no note"}`,
			call("API-getNote", map[string]any{"noteId": "missing"}))
		<-calls
	})

	t.Run("unknown tool", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Name = "API-deleteNote"
		_, err := c.CallTool(ctx, req)
		assert.EqualError(t, err, "Method API-deleteNote not found")
	})
}
