package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/straye-as/pipeline-api/migrations"
	"go.uber.org/zap"
)

const usage = "usage: migrate [-timeout seconds] up|up-to VERSION|down|down-to VERSION|status|version"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	timeout := flag.Int("timeout", 120, "timeout in seconds")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	command := args[0]
	switch command {
	case "up":
		results, err := provider.Up(ctx)
		logResults(log, results)
		if err != nil {
			return fmt.Errorf("failed to run up migrations: %w", err)
		}
	case "up-to", "down-to":
		if len(args) < 2 {
			return fmt.Errorf("%s requires a version", command)
		}
		version, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		var results []*goose.MigrationResult
		if command == "up-to" {
			results, err = provider.UpTo(ctx, version)
		} else {
			results, err = provider.DownTo(ctx, version)
		}
		logResults(log, results)
		if err != nil {
			return fmt.Errorf("failed to migrate to %d: %w", version, err)
		}
	case "down":
		result, err := provider.Down(ctx)
		if result != nil {
			logResults(log, []*goose.MigrationResult{result})
		}
		if err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		for _, s := range statuses {
			log.Info("migration",
				zap.Int64("version", s.Source.Version),
				zap.String("file", s.Source.Path),
				zap.String("state", string(s.State)),
				zap.Time("applied_at", s.AppliedAt))
		}
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Info("database version", zap.Int64("version", version))
	default:
		return fmt.Errorf("unknown command %q; %s", command, usage)
	}
	return nil
}

func logResults(log *zap.Logger, results []*goose.MigrationResult) {
	if len(results) == 0 {
		log.Info("no migrations to apply")
		return
	}
	for _, r := range results {
		fields := []zap.Field{
			zap.Int64("version", r.Source.Version),
			zap.String("direction", r.Direction),
			zap.Duration("duration", r.Duration),
		}
		if r.Error != nil {
			log.Error("migration failed", append(fields, zap.Error(r.Error))...)
			continue
		}
		log.Info("migration applied", fields...)
	}
}
