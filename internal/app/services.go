// Package app assembles the domain services shared by the api and cron-worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/internal/forecast"
	"github.com/angelmondragon/abcxyz-forecast/pkg/config"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/metrics"
	"github.com/angelmondragon/abcxyz-forecast/pkg/mlmodel"
	"github.com/angelmondragon/abcxyz-forecast/pkg/redis"
)

// Services holds the wired domain services.
type Services struct {
	ABCXYZ   abcxyz.Service
	Forecast forecast.Service
	Results  abcxyz.ResultStore
	// SharedResults is true when results live in Redis, visible to every process.
	SharedResults bool
}

// Params lists the infrastructure the services are built on. Redis is optional.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Metrics *metrics.AnalysisMetrics
}

// NewServices builds the result store, the classification service and the forecast service.
// A missing model artifact is not fatal; database-origin forecasts then report the dependency
// as unavailable.
func NewServices(ctx context.Context, p Params) (*Services, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil {
		return nil, fmt.Errorf("config, logger and database are required")
	}
	cfg := p.Config

	results, err := resultStore(ctx, p)
	if err != nil {
		return nil, err
	}

	classifier, err := abcxyz.NewService(
		abcxyz.NewRepository(p.DB.DB()),
		results,
		abcxyz.DefaultCutoffs(cfg.Classification),
		p.Logger,
		p.Metrics,
	)
	if err != nil {
		return nil, fmt.Errorf("classification service: %w", err)
	}

	corrector, globalMean := loadCorrector(ctx, cfg.Forecast.ArtifactDir, p.Logger)
	forecaster, err := forecast.NewService(forecast.ServiceParams{
		Repo: forecast.NewRepository(p.DB.DB()),
		Tx:   p.DB,
		Baselines: forecast.NewDBBaselineResolver(
			forecast.NewSalesHistoryRepository(p.DB.DB()),
			globalMean,
			cfg.Forecast.BaselineConcurrency,
			p.Logger,
			p.Metrics,
		),
		Results:      results,
		Corrector:    corrector,
		ModelName:    cfg.Forecast.ModelName,
		ModelVersion: cfg.Forecast.ModelVersion,
		Logger:       p.Logger,
		Metrics:      p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast service: %w", err)
	}

	_, shared := results.(*abcxyz.RedisResultStore)
	return &Services{ABCXYZ: classifier, Forecast: forecaster, Results: results, SharedResults: shared}, nil
}

func resultStore(ctx context.Context, p Params) (abcxyz.ResultStore, error) {
	cfg := p.Config
	if p.Redis != nil && cfg.FeatureFlags.RedisResultStore {
		store, err := abcxyz.NewRedisResultStore(p.Redis, cfg.Classification.ResultTTL)
		if err != nil {
			return nil, fmt.Errorf("redis result store: %w", err)
		}
		p.Logger.Info(p.Logger.WithField(ctx, "result_store", "redis"), "classification results stored in redis")
		return store, nil
	}
	p.Logger.Info(p.Logger.WithField(ctx, "result_store", "memory"), "classification results kept in memory")
	return abcxyz.NewMemoryResultStore(cfg.Classification.MemoryHistory), nil
}

func loadCorrector(ctx context.Context, dir string, logg *logger.Logger) (*forecast.Corrector, float64) {
	ctx = logg.WithField(ctx, "artifact_dir", dir)
	artifact, err := mlmodel.Load(dir)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "model artifact unavailable; database forecasts disabled")
		return nil, 0
	}
	corrector, err := forecast.NewCorrector(artifact)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "model artifact rejected; database forecasts disabled")
		return nil, 0
	}
	logg.Info(logg.WithField(ctx, "model_version", artifact.Meta.Version), "model artifact loaded")
	return corrector, artifact.Maps.GlobalMean
}
