package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"emergency-dispatch/internal/config"
	"emergency-dispatch/internal/feed"
	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/publish"
	"emergency-dispatch/internal/sources"
	"emergency-dispatch/internal/store"
	"emergency-dispatch/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "emergency-dispatch",
		Usage: "Aggregate fire department dispatch pages into a single feed.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output-dir", Usage: "Directory for records and artifacts. Overrides DISPATCH_OUTPUT_DIR."},
			&cli.IntFlag{Name: "workers", Usage: "Sources collected in parallel. Overrides DISPATCH_WORKERS."},
		},
		Commands: []*cli.Command{
			runCommand(),
			fetchCommand(),
			buildCommand(),
			sourcesCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func codeFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "code", Usage: "Only collect the given jurisdiction codes (repeatable)."}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{Name: "dry-run", Usage: "Build locally but do not publish anything."}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Collect every source, build the feed and publish it.",
		Flags: []cli.Flag{
			codeFlag(),
			dryRunFlag(),
		},
		Action: func(c *cli.Context) error {
			s, logger, err := newSyncer(c)
			if err != nil {
				return err
			}

			logger.Info("Running a single cycle.")
			return s.Run(c.Context, syncer.AllSteps)
		},
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Collect sources into per-authority records without building the feed.",
		Flags: []cli.Flag{codeFlag()},
		Action: func(c *cli.Context) error {
			s, _, err := newSyncer(c)
			if err != nil {
				return err
			}
			return s.Run(c.Context, syncer.StepCollect)
		},
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build and publish the artifacts from the records already on disk.",
		Flags: []cli.Flag{dryRunFlag()},
		Action: func(c *cli.Context) error {
			s, _, err := newSyncer(c)
			if err != nil {
				return err
			}
			return s.Run(c.Context, syncer.StepBuild|syncer.StepPublish)
		},
	}
}

func sourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List the registered sources.",
		Action: func(c *cli.Context) error {
			for _, a := range sources.Registry() {
				fmt.Fprintf(c.App.Writer, "%s\t%s\n", a.Code(), a.Name())
			}
			return nil
		},
	}
}

// newSyncer wires a Syncer from the environment and the command's flags.
func newSyncer(c *cli.Context) (*syncer.Syncer, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	logger := setupLogger(cfg.LogLevel)

	if c.Bool("dry-run") {
		logger.Info("Performing a dry run. Nothing will be published.")
	}

	adapters, err := sources.Lookup(c.StringSlice("code"))
	if err != nil {
		return nil, nil, err
	}

	dir, err := store.Open(cfg.OutputDir, logger)
	if err != nil {
		return nil, nil, err
	}

	destinations, err := newDestinations(c.Context, cfg)
	if err != nil {
		return nil, nil, err
	}

	s := syncer.NewSyncer(logger, dir, fetch.NewHTTPFetcher(cfg.HTTPTimeout, cfg.UserAgent), adapters, destinations, syncer.Options{
		Channel:     feed.Channel{Link: cfg.FeedLink},
		Location:    cfg.Location,
		Workers:     cfg.Workers,
		DryRun:      c.Bool("dry-run"),
		MetricsFile: cfg.MetricsFile,
	})
	return s, logger, nil
}

func newDestinations(ctx context.Context, cfg *config.Config) ([]publish.Destination, error) {
	var dests []publish.Destination
	if cfg.WebDAVURL != "" {
		d, err := publish.NewWebDAVDestination(cfg.WebDAVURL, cfg.WebDAVUser, cfg.WebDAVPassword, cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	if cfg.S3Bucket != "" {
		d, err := publish.NewS3Destination(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 destination: %w", err)
		}
		dests = append(dests, d)
	}
	return dests, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
