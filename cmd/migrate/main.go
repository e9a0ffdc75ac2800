package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/migrate"
	"github.com/angelmondragon/uporders-backend/pkg/outbox"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	eventID string
	reason  string
	limit   int
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "command: up|down|status|version|create|validate|seed|dlq|replay")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.StringVar(&opts.eventID, "event", "", "outbox event id for -cmd=replay")
	flag.StringVar(&opts.reason, "reason", "", "max_attempts|non_retryable filter for -cmd=dlq")
	flag.IntVar(&opts.limit, "limit", 50, "rows to show for -cmd=dlq")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (err error) {
	// create and validate only touch the filesystem
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	switch opts.cmd {
	case "up", "down", "status", "version":
		return runGoose(ctx, dbClient, logg, opts)
	case "seed":
		result, err := seedDemo(ctx, dbClient.DB(), cfg.JWT, time.Now())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		return printJSON(result)
	case "dlq":
		var filter enums.OutboxDLQErrorReason
		if opts.reason != "" {
			if filter, err = enums.ParseOutboxDLQErrorReason(opts.reason); err != nil {
				return err
			}
		}
		rows, err := outbox.NewDLQRepository(dbClient.DB()).List(ctx, filter, opts.limit)
		if err != nil {
			return fmt.Errorf("list dead letters: %w", err)
		}
		return printJSON(rows)
	case "replay":
		id, err := uuid.Parse(opts.eventID)
		if err != nil {
			return errors.New("missing or invalid -event for replay")
		}
		if err := outbox.NewDLQRepository(dbClient.DB()).Replay(ctx, id); err != nil {
			return fmt.Errorf("replay %s: %w", id, err)
		}
		fmt.Println("event requeued:", id)
		return nil
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

func runGoose(ctx context.Context, dbClient *db.Client, logg *logger.Logger, opts options) error {
	if dbClient.IsSQLite() {
		// goose files are postgres-only
		return migrate.AutoMigrate(ctx, dbClient.DB())
	}
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB, opts.dir, logg)
	if err != nil {
		return err
	}

	switch opts.cmd {
	case "up":
		return migrator.Up(ctx)
	case "down":
		return migrator.Down(ctx)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrator.To(ctx, opts.version)
	default:
		rows, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(rows)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
