package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/rafflehouse-backend/pkg/config"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir DIR] <command>

commands:
  up               apply all pending migrations
  down             roll back the latest migration
  status           list migrations and their state
  to VERSION       migrate up or down to VERSION (YYYYMMDDHHMMSS)
  create NAME      write an empty migration into -dir
  validate         check file names and goose markers`

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	flags := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := flags.String("dir", "", "read migrations from disk instead of the embedded set")
	flags.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}
	cmd, args := flags.Arg(0), flags.Args()[1:]

	if err := run(context.Background(), logg, cmd, args, *dir); err != nil {
		logg.Error(logg.WithField(context.Background(), "cmd", cmd), "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, cmd string, args []string, dir string) error {
	source := migrate.Migrations()
	if dir != "" {
		source = os.DirFS(dir)
	}

	// Offline commands never touch the database or need full config.
	switch cmd {
	case "create":
		if len(args) != 1 {
			return errors.New("create needs exactly one NAME")
		}
		target := dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.Validate(source); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		return errors.New("goose migrations target postgres; sqlite uses the dev schema")
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd})

	return withRunner(ctx, cfg, logg, source, func(runner *migrate.Runner) error {
		switch cmd {
		case "up":
			return runner.Up(ctx)
		case "down":
			return runner.Down(ctx)
		case "status":
			return runner.Status(ctx)
		case "to":
			if len(args) != 1 {
				return errors.New("to needs exactly one VERSION")
			}
			return runner.MigrateTo(ctx, args[0])
		default:
			return fmt.Errorf("unknown command %q\n%s", cmd, usage)
		}
	})
}

func withRunner(ctx context.Context, cfg *config.Config, logg *logger.Logger, source fs.FS, fn func(*migrate.Runner) error) (err error) {
	client, err := db.New(ctx, cfg.DB, false, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, source, logg)
	if err != nil {
		return err
	}
	return fn(runner)
}
