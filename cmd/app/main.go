package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notepub/internal"
	pkgconfig "github.com/starford/notepub/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithSkipSync(cmd.Bool("skip-sync")),
		internal.WithoutPush(cmd.Bool("no-push")),
	}, nil
}

func publish(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if _, err := internal.RunPublish(ctx, opts...); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func relay(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	stats, err := internal.RunRelay(ctx, opts...)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	fmt.Printf("copied %d, unchanged %d\n", stats.Copied, stats.Unchanged)
	return nil
}

func captureListener(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunCapture(ctx, opts...); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

func captures(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ListCaptures(ctx, os.Stdout, cmd.String("method"), int(cmd.Int("limit")), opts...)
}

func watchContent(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return internal.RunWatch(ctx, opts...)
}

func scheduleRuns(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("every") {
		cfg.Schedule.Every = cmd.Duration("every")
		if err := cfg.Schedule.Validate(); err != nil {
			return fmt.Errorf("invalid --every: %w", err)
		}
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return internal.RunSchedule(ctx,
		internal.WithConfig(cfg),
		internal.WithSkipSync(cmd.Bool("skip-sync")),
		internal.WithoutPush(cmd.Bool("no-push")),
	)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func main() {
	runFlags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "skip-sync",
			Usage: "Skip the note export and rebuild from the current content",
		},
		&cli.BoolFlag{
			Name:  "no-push",
			Usage: "Commit locally without pushing",
		},
	}

	cmd := &cli.Command{
		Name:  "notepub",
		Usage: "Publish exported notes as a static site to a git remote",
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
				Name:   "publish",
				Usage:  "Export notes, build the site, and commit and push changed output",
				Flags:  runFlags,
				Action: publish,
			},
			{
				Name:   "relay",
				Usage:  "Copy exported images into the public static directory",
				Action: relay,
			},
			{
				Name:   "capture",
				Usage:  "Record every incoming HTTP request to the debug directory",
				Action: captureListener,
			},
			{
				Name:  "captures",
				Usage: "List recorded requests, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "method", Usage: "Only show requests with this HTTP method"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of records (0 for all)", Value: 20},
				},
				Action: captures,
			},
			{
				Name:   "watch",
				Usage:  "Rebuild and publish whenever the content directory changes",
				Flags:  []cli.Flag{runFlags[1]},
				Action: watchContent,
			},
			{
				Name:  "schedule",
				Usage: "Run a full publish now and then on a fixed interval",
				Flags: append([]cli.Flag{
					&cli.DurationFlag{Name: "every", Usage: "Interval between runs (overrides schedule.every)"},
				}, runFlags...),
				Action: scheduleRuns,
			},
			{
				Name:   "mcp",
				Usage:  "Serve publishing and capture tools over MCP stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
