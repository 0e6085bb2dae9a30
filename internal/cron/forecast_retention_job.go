package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

const forecastRetentionDays = 365

type runPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ForecastRetentionJobParams struct {
	Logger    *logger.Logger
	Runs      runPurger
	Retention int
}

func NewForecastRetentionJob(params ForecastRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Runs == nil {
		return nil, fmt.Errorf("forecast run purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = forecastRetentionDays
	}
	return &forecastRetentionJob{
		logg:      params.Logger,
		runs:      params.Runs,
		retention: retention,
		now:       time.Now,
	}, nil
}

type forecastRetentionJob struct {
	logg      *logger.Logger
	runs      runPurger
	retention int
	now       func() time.Time
}

func (j *forecastRetentionJob) Name() string { return "forecast-retention" }

func (j *forecastRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	deleted, err := j.runs.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("forecast retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"runs_deleted":   deleted,
	}), "forecast retention cleanup complete")
	return nil
}
