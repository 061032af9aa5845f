package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"metroplan/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:        "metroplan",
		Usage:       "transit route planner and fare engine",
		Description: "Plans routes over a multi-line transit network and prices them.",
		Commands: []*cli.Command{
			serveCommand(cfg, logger),
			planCommand(logger),
			checkCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
