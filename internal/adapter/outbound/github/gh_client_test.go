package github

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		want        Location
		expectError bool
	}{
		{
			name: "simple github URL",
			url:  "github://owner/repo/path/to/file.yaml",
			want: Location{Owner: "owner", Repo: "repo", Path: "path/to/file.yaml"},
		},
		{
			name: "github URL with tag ref",
			url:  "github://owner/repo/path/to/file.yaml@v1.0",
			want: Location{Owner: "owner", Repo: "repo", Path: "path/to/file.yaml", Ref: "v1.0"},
		},
		{
			name: "github URL with branch ref",
			url:  "github://makenotion/notion-sdk/openapi/notion.json@main",
			want: Location{Owner: "makenotion", Repo: "notion-sdk", Path: "openapi/notion.json", Ref: "main"},
		},
		{
			name:        "invalid URL - not github",
			url:         "https://github.com/owner/repo/file.yaml",
			expectError: true,
		},
		{
			name:        "invalid URL - missing path",
			url:         "github://owner/repo",
			expectError: true,
		},
		{
			name:        "invalid URL - empty repo",
			url:         "github://owner//file.yaml",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocation(tt.url)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc)
		})
	}
}

func TestLocation_APIPath(t *testing.T) {
	assert.Equal(t, "repos/o/r/contents/a/b.yaml", Location{Owner: "o", Repo: "r", Path: "a/b.yaml"}.APIPath())
	assert.Equal(t, "repos/o/r/contents/a.yaml?ref=feature%2Fx", Location{Owner: "o", Repo: "r", Path: "a.yaml", Ref: "feature/x"}.APIPath())
}

func TestGHClient_FetchFile(t *testing.T) {
	var gotName string
	var gotArgs []string
	client := NewGHClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("openapi: 3.0.0\n"), nil
	})

	content, err := client.FetchFile(context.Background(), "github://o/r/spec.yaml@main")
	require.NoError(t, err)
	assert.Equal(t, "openapi: 3.0.0\n", string(content))
	assert.Equal(t, "gh", gotName)
	assert.Equal(t, []string{"api", "-H", "Accept: application/vnd.github.raw", "repos/o/r/contents/spec.yaml?ref=main"}, gotArgs)
}

func TestGHClient_FetchFileErrors(t *testing.T) {
	failing := NewGHClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("gh failed: HTTP 404")
	})
	_, err := failing.FetchFile(context.Background(), "github://o/r/missing.yaml")
	assert.EqualError(t, err, "gh failed: HTTP 404")

	empty := NewGHClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("  \n"), nil
	})
	_, err = empty.FetchFile(context.Background(), "github://o/r/empty.yaml")
	assert.EqualError(t, err, "empty response from GitHub")

	_, err = empty.FetchFile(context.Background(), "file.yaml")
	assert.Error(t, err)
}

func TestIsGitHubURL(t *testing.T) {
	assert.True(t, IsGitHubURL("github://o/r/f.yaml"))
	assert.False(t, IsGitHubURL("https://github.com/o/r"))
	assert.False(t, IsGitHubURL("./openapi.yaml"))
}
