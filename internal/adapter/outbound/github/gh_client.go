package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

const scheme = "github://"

// Location is a file in a GitHub repository: github://owner/repo/path/to/file[@ref].
type Location struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// ParseLocation parses a github:// source.
func ParseLocation(source string) (Location, error) {
	rest, ok := strings.CutPrefix(source, scheme)
	if !ok {
		return Location{}, fmt.Errorf("invalid GitHub URL format: %s", source)
	}
	var loc Location
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		loc.Ref = rest[at+1:]
		rest = rest[:at]
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Location{}, errors.New("invalid GitHub URL format: expected github://owner/repo/path/to/file")
	}
	loc.Owner, loc.Repo, loc.Path = parts[0], parts[1], parts[2]
	return loc, nil
}

// APIPath is the contents endpoint of the file.
func (l Location) APIPath() string {
	p := fmt.Sprintf("repos/%s/%s/contents/%s", l.Owner, l.Repo, l.Path)
	if l.Ref != "" {
		p += "?ref=" + url.QueryEscape(l.Ref)
	}
	return p
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s is not installed: %w", name, err)
		}
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s failed: %s", name, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// GHClient reads repository files through the authenticated gh CLI.
type GHClient struct {
	run Runner
}

// NewGHClient creates a client. A nil runner uses ExecRunner.
func NewGHClient(run Runner) *GHClient {
	if run == nil {
		run = ExecRunner
	}
	return &GHClient{run: run}
}

// FetchFile returns the raw content of a github:// source.
func (c *GHClient) FetchFile(ctx context.Context, source string) ([]byte, error) {
	loc, err := ParseLocation(source)
	if err != nil {
		return nil, err
	}
	out, err := c.run(ctx, "gh", "api", "-H", "Accept: application/vnd.github.raw", loc.APIPath())
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, errors.New("empty response from GitHub")
	}
	return out, nil
}

// IsGitHubURL checks if a source uses the github:// scheme.
func IsGitHubURL(source string) bool {
	return strings.HasPrefix(source, scheme)
}
