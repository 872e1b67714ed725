package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/core/config"
	"cadence.app/outreach/core/db"
)

const usage = "usage: migrate [up|down|status|reset]"

func main() {
	ctx := context.Background()

	command := db.MigrateUp
	if len(os.Args) > 1 {
		command = db.MigrateCommand(os.Args[1])
	}
	switch command {
	case db.MigrateUp, db.MigrateDown, db.MigrateStatus, db.MigrateReset:
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(config.ServiceTypeMigrate)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	if command == db.MigrateReset && cfg.IsProduction() {
		slog.ErrorContext(ctx, "refusing to reset a production database")
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(ctx, command); err != nil {
		slog.ErrorContext(ctx, "migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "migration complete", "command", command)
}
