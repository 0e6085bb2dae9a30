package cron

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

type classifier interface {
	Precheck(ctx context.Context) (*abcxyz.Precheck, error)
	ClassifyFromDatabase(ctx context.Context) (*abcxyz.Result, error)
}

// ABCXYZRefreshJobParams configure the classification refresh.
type ABCXYZRefreshJobParams struct {
	Logger     *logger.Logger
	Classifier classifier
}

// NewABCXYZRefreshJob re-runs the database classification so the stored latest result tracks
// current sales.
func NewABCXYZRefreshJob(params ABCXYZRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Classifier == nil {
		return nil, fmt.Errorf("classifier required")
	}
	return &abcxyzRefreshJob{logg: params.Logger, classifier: params.Classifier}, nil
}

type abcxyzRefreshJob struct {
	logg       *logger.Logger
	classifier classifier
}

func (j *abcxyzRefreshJob) Name() string { return "abcxyz-refresh" }

func (j *abcxyzRefreshJob) Run(ctx context.Context) error {
	check, err := j.classifier.Precheck(ctx)
	if err != nil {
		return fmt.Errorf("precheck: %w", err)
	}
	if !check.Ready {
		j.logg.Warn(j.logg.WithField(ctx, "reasons", strings.Join(check.Reasons, ",")), "sales data not ready, skipping classification")
		return nil
	}
	result, err := j.classifier.ClassifyFromDatabase(ctx)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"result_id": result.ID,
		"rows":      len(result.Rows),
	}), "classification refreshed")
	return nil
}
