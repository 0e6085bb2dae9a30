package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/pkg/config"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db/models"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/migrate"
)

const serviceKind = "migrate"

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	force   bool
}

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate|automigrate|seed-cutoffs")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.BoolVar(&opts.force, "force", false, "overwrite stored cutoffs (for seed-cutoffs)")
	flag.Parse()

	// create and validate only touch the filesystem
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exit(errors.New("missing -name for create"))
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			exit(fmt.Errorf("create migration: %w", err))
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			exit(fmt.Errorf("migration validation failed: %w", err))
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
		"driver": cfg.DB.Driver,
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate done")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	dialect := dbClient.Dialect()

	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.dir, opts.version)
	case "automigrate":
		return dbClient.DB().WithContext(ctx).AutoMigrate(migrate.Models...)
	case "seed-cutoffs":
		return seedCutoffs(ctx, logg, abcxyz.NewRepository(dbClient.DB()), cfg.Classification, opts.force)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

type cutoffStore interface {
	GetCutoffs(ctx context.Context) (*models.ABCXYZCutoffs, error)
	SaveCutoffs(ctx context.Context, row *models.ABCXYZCutoffs) error
}

// seedCutoffs writes the configured default thresholds unless a row already exists.
func seedCutoffs(ctx context.Context, logg *logger.Logger, store cutoffStore, defaults config.ClassificationConfig, force bool) error {
	current, err := store.GetCutoffs(ctx)
	if err != nil {
		return fmt.Errorf("read cutoffs: %w", err)
	}
	if current != nil && !force {
		logg.Info(ctx, "cutoffs already stored; use -force to overwrite")
		return nil
	}
	cutoffs := abcxyz.Cutoffs{
		ACut: defaults.DefaultACut,
		BCut: defaults.DefaultBCut,
		XCut: defaults.DefaultXCut,
		YCut: defaults.DefaultYCut,
	}
	if err := cutoffs.Validate(); err != nil {
		return err
	}
	updatedBy := serviceKind
	return store.SaveCutoffs(ctx, &models.ABCXYZCutoffs{
		ACut:      cutoffs.ACut,
		BCut:      cutoffs.BCut,
		XCut:      cutoffs.XCut,
		YCut:      cutoffs.YCut,
		UpdatedBy: &updatedBy,
	})
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
