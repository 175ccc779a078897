package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/antariksh/spacebot/internal/config"
)

// loadRuntime loads configuration and builds the process logger. Every
// subcommand goes through here so log level and data dir behave the same
// across the CLI.
func loadRuntime() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	level := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	return cfg, log, nil
}
