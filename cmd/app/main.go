package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/feedwise/internal"
	pkgconfig "github.com/starford/feedwise/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func exportData(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var out io.Writer = os.Stdout
	if path := cmd.String("output"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return internal.Export(ctx, out, internal.WithConfig(cfg))
}

func importData(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: import <file|->")
	}
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	n, err := internal.Import(ctx, in, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "imported %d profiles\n", n)
	return nil
}

func setToken(_ context.Context, cmd *cli.Command) error {
	token := cmd.Args().First()
	if token == "" {
		token = os.Getenv("FEEDWISE_TOKEN")
	}
	if err := internal.StoreToken(cmd.String("user"), token); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "token stored for %q\n", cmd.String("user"))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "feedwise",
		Usage:   "Pet feeding planner with calorie-based portions and daily meal reminders",
		Version: internal.Version,
		Action:  serve,
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
				Name:   "serve",
				Usage:  "Run the HTTP API and the reminder scheduler (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve read-only MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "export",
				Usage:  "Write every profile as an export document",
				Action: exportData,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Replace every profile with an export document",
				ArgsUsage: "<file|->",
				Action:    importData,
			},
			{
				Name:  "token",
				Usage: "Manage the API token in the OS keyring",
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "Store the API token (argument or FEEDWISE_TOKEN)",
						ArgsUsage: "[token]",
						Action:    setToken,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "user",
								Usage: "Keyring account, matches auth.keyring_user",
								Value: "api",
							},
						},
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
