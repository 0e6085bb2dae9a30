package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/abcxyz-forecast/internal/app"
	"github.com/angelmondragon/abcxyz-forecast/internal/cron"
	"github.com/angelmondragon/abcxyz-forecast/pkg/config"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/metrics"
	"github.com/angelmondragon/abcxyz-forecast/pkg/migrate"
	"github.com/angelmondragon/abcxyz-forecast/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	jobs := flag.String("jobs", "", "comma separated job names to run (default: all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg, *once, *jobs); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, once bool, jobs string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()

		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind, cfg.App.Env), cfg.Cron.LockTTL)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "redis not configured; using a process-local lock and in-memory results")
	}

	services, err := app.NewServices(ctx, app.Params{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Redis:   redisClient,
		Metrics: metrics.NewAnalysisMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	registry, err := buildRegistry(ctx, logg, cfg, services, jobs)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "jobs", registry.Names())

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	if once {
		logg.Info(ctx, "running cron jobs once")
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// buildRegistry wires the jobs. The classification refresh only runs when results are shared
// through Redis; a process-local store would keep them where the API never reads.
func buildRegistry(ctx context.Context, logg *logger.Logger, cfg *config.Config, services *app.Services, selector string) (*cron.Registry, error) {
	registry := cron.NewRegistry()
	if services.SharedResults {
		refresh, err := cron.NewABCXYZRefreshJob(cron.ABCXYZRefreshJobParams{
			Logger:     logg,
			Classifier: services.ABCXYZ,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(refresh)
	} else {
		logg.Warn(ctx, "result store is process-local; abcxyz-refresh disabled")
	}

	retention, err := cron.NewForecastRetentionJob(cron.ForecastRetentionJobParams{
		Logger:    logg,
		Runs:      services.Forecast,
		Retention: cfg.Forecast.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(retention)
	return registry.Select(selector)
}
