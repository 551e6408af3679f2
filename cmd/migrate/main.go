// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pressly/goose/v3"

	"github.com/bpa-library/library/internal/config"
	"github.com/bpa-library/library/internal/gateway"
	"github.com/bpa-library/library/migrations"
)

const usage = "usage: migrate [-config path] up|down|status|version"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, command, logger); err != nil {
		logger.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(configPath, command string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	dbCfg, err := config.LoadDatabase(configPath)
	if err != nil {
		return err
	}

	dialect, err := gateway.ParseDialect(dbCfg.Dialect)
	if err != nil {
		return err
	}

	broker, err := gateway.NewBroker(ctx, dialect, *dbCfg)
	if err != nil {
		return err
	}
	defer broker.Close() //nolint:errcheck // process exits next

	fsys, err := migrations.For(dialect.String())
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect(dialect.GooseDialect()); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db := broker.DB()
	logger.Info("running migrations", "command", command, "dialect", dialect.String())

	switch command {
	case "up":
		err = goose.UpContext(ctx, db, ".")
	case "down":
		err = goose.DownContext(ctx, db, ".")
	case "status":
		err = goose.StatusContext(ctx, db, ".")
	case "version":
		var version int64
		version, err = goose.GetDBVersionContext(ctx, db)
		if err == nil {
			logger.Info("current migration version", "version", version)
		}
	default:
		return fmt.Errorf("unknown command %q: %s", command, usage)
	}
	if err != nil {
		return err
	}

	logger.Info("migrations finished", "command", command)
	return nil
}
