package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/i2y/restmcp/configs"
	"github.com/i2y/restmcp/internal/adapter/inbound/mcphttp"
)

// version is set by build flags during release
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "restmcp",
		Usage:   "Expose the operations of an OpenAPI document as MCP tools.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "document",
				Aliases: []string{"d"},
				Usage:   "OpenAPI document: URL, file path or github://owner/repo/path[@ref]",
			},
			&cli.StringFlag{
				Name:    "base-url",
				Aliases: []string{"b"},
				Usage:   "Base URL used for API calls instead of the document's servers",
			},
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Usage:   "MCP transport: stdio, sse or http",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Load the document and serve its tools over MCP.",
				Action: runServe,
			},
			{
				Name:   "tools",
				Usage:  "Print the generated catalogue as JSON, return schemas included.",
				Action: runTools,
			},
			{
				Name:   "check",
				Usage:  "Generate the catalogue and report schema problems.",
				Action: runCheck,
			},
		},
		DefaultCommand: "serve",
	}
}

// loadConfig reads the environment and config file, then applies flags.
func loadConfig(ctx context.Context, cmd *cli.Command) (*configs.Config, error) {
	cfg, err := configs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.IsSet("document") {
		cfg.Document = cmd.String("document")
	}
	if cmd.IsSet("base-url") {
		cfg.BaseURL = cmd.String("base-url")
	}
	if cmd.IsSet("transport") {
		cfg.Transport = cmd.String("transport")
	}
	return cfg, nil
}

// setup loads config and builds the application for offline commands,
// logging to the command's error writer.
func setup(ctx context.Context, cmd *cli.Command) (*application, error) {
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return nil, err
	}
	cfg.Transport = ""
	logger, _ := newLogger(cfg, cmd.Root().ErrWriter)
	a := newApplication(cfg, logger)
	if err := a.load(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func runTools(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	tools, err := a.repo.List(ctx)
	if err != nil {
		return err
	}
	views := make([]mcphttp.ToolView, 0, len(tools))
	for _, t := range tools {
		v := mcphttp.ToolView{Tool: t}
		if d, err := a.repo.FindInvocationDetailsByName(ctx, t.Name); err == nil {
			v.Method, v.Path = string(d.HTTPMethod), d.HTTPPath
		}
		views = append(views, v)
	}
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	report, err := a.check.Execute(ctx)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	for _, p := range report.Problems {
		fmt.Fprintf(out, "%s: %s\n", p.Tool, p.Message)
	}
	if !report.OK() {
		return cli.Exit(fmt.Sprintf("%d problem(s) in %d tools", len(report.Problems), report.Tools), 1)
	}
	fmt.Fprintf(out, "%d tools OK\n", report.Tools)
	a.logger.Debug("Check finished.", slog.Int("tools", report.Tools))
	return nil
}
