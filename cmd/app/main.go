package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ghostwriter/internal"
	pkgconfig "github.com/starford/ghostwriter/pkg/config"
)

func loadConfig(cmd *cli.Command, optional bool) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if optional {
		load = pkgconfig.LoadOptional[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func noteArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one note path, got %d", cmd.Args().Len())
	}
	return cmd.Args().First(), nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// exampleConfig prints the default configuration as YAML.
func exampleConfig(context.Context, *cli.Command) error {
	out, err := pkgconfig.Example(internal.NewDefaultConfig())
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func publish(ctx context.Context, cmd *cli.Command) error {
	notePath, err := noteArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if cmd.Bool("open") {
		cfg.Publish.OpenBrowser = true
	}
	return internal.Publish(ctx, notePath, internal.WithConfig(cfg))
}

func render(ctx context.Context, cmd *cli.Command) error {
	notePath, err := noteArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	return internal.Render(ctx, notePath,
		internal.WithConfig(cfg),
		internal.WithOffline(cmd.Bool("offline")))
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg))
}

func index(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	return internal.Index(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:  "ghostwriter",
		Usage: "Publish Obsidian Markdown notes to a Ghost blog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "publish",
				Usage:     "Render a note and create or update it on Ghost",
				ArgsUsage: "<note.md>",
				Action:    publish,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "open",
						Aliases: []string{"o"},
						Usage:   "Open the Ghost editor after publishing",
						Sources: cli.EnvVars("GHOSTWRITER_OPEN_BROWSER"),
					},
				},
			},
			{
				Name:      "render",
				Usage:     "Print the Ghost HTML for a note without publishing",
				ArgsUsage: "<note.md>",
				Action:    render,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Skip link previews and embeds fetched from Ghost",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live index updates and metrics",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "config",
				Usage:  "Print the default configuration file",
				Action: exampleConfig,
			},
			{
				Name:   "index",
				Usage:  "Sync the vault into the SQLite index",
				Action: index,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
