package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db/models"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/metrics"
	"github.com/angelmondragon/abcxyz-forecast/pkg/monthkey"
	"github.com/angelmondragon/abcxyz-forecast/pkg/pagination"
)

type runRepository interface {
	WithTx(tx *gorm.DB) runRepository
	CreateRun(ctx context.Context, run *models.ForecastRun) error
	CreateDetails(ctx context.Context, details []models.ForecastDetail) error
	ListRuns(ctx context.Context, limit int, afterID int64) ([]models.ForecastRun, error)
	FindRun(ctx context.Context, id int64) (*models.ForecastRun, error)
	ListDetails(ctx context.Context, runID int64) ([]DetailView, error)
	DeleteRun(ctx context.Context, id int64) (bool, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type baselineResolver interface {
	ResolveAll(ctx context.Context, items []Item, months []time.Time) ([]Baseline, error)
}

// Service runs forecasts and manages their stored history.
type Service interface {
	Forecast(ctx context.Context, input Input) (*Output, error)
	ListRuns(ctx context.Context, params pagination.Params) (*RunList, error)
	GetRun(ctx context.Context, id int64) (*RunDetail, error)
	DeleteRun(ctx context.Context, id int64) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ModelInfo() ModelInfo
}

// ServiceParams groups the forecast service collaborators. Corrector may be nil when no model
// artifact is installed; database-origin forecasts then fail with a dependency error.
type ServiceParams struct {
	Repo         runRepository
	Tx           txRunner
	Baselines    baselineResolver
	Results      abcxyz.ResultStore
	Corrector    *Corrector
	ModelName    string
	ModelVersion string
	Logger       *logger.Logger
	Metrics      *metrics.AnalysisMetrics
}

type service struct {
	repo         runRepository
	tx           txRunner
	baselines    baselineResolver
	results      abcxyz.ResultStore
	corrector    *Corrector
	modelName    string
	modelVersion string
	logg         *logger.Logger
	metrics      *metrics.AnalysisMetrics
	now          func() time.Time
}

// NewService wires the forecast orchestrator.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("forecast repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Baselines == nil {
		return nil, fmt.Errorf("baseline resolver required")
	}
	if p.Results == nil {
		return nil, fmt.Errorf("result store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:         p.Repo,
		tx:           p.Tx,
		baselines:    p.Baselines,
		results:      p.Results,
		corrector:    p.Corrector,
		modelName:    p.ModelName,
		modelVersion: p.ModelVersion,
		logg:         p.Logger,
		metrics:      p.Metrics,
		now:          time.Now,
	}, nil
}

func (s *service) Forecast(ctx context.Context, input Input) (out *Output, err error) {
	started := s.now()
	defer func() {
		items := 0
		if out != nil {
			items = len(out.Predictions)
		}
		s.metrics.ObserveForecast(string(input.Origin), items, s.now().Sub(started), err)
	}()

	if !input.Origin.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid forecast origin").
			WithDetails(map[string]any{"origin": input.Origin})
	}
	months, err := targetMonths(input.Items)
	if err != nil {
		return nil, err
	}

	var (
		baselines   []Baseline
		predictions []float64
		modelName   string
		version     string
		resultID    string
	)
	switch input.Origin {
	case enums.ForecastOriginDB:
		if s.corrector == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "forecast model is not available")
		}
		baselines, err = s.baselines.ResolveAll(ctx, input.Items, months)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve baselines")
		}
		predictions, err = s.correct(input.Items, months, baselines)
		if err != nil {
			return nil, err
		}
		modelName, version = s.modelName, s.version()
	default:
		result, err := s.classification(ctx, input.ResultID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			resultID = result.ID
		}
		baselines = make([]Baseline, len(input.Items))
		predictions = make([]float64, len(input.Items))
		for i, item := range input.Items {
			baselines[i] = SpreadsheetBaseline(result, item, monthkey.Format(months[i]))
			predictions[i] = baselines[i].Value
			s.metrics.IncBaselineStrategy(baselines[i].Strategy)
		}
		modelName, version = BaselineModelName, s.version()
	}

	run := buildRun(input, months, modelName, version, s.now())
	details := buildDetails(input, months, predictions, baselines)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateRun(ctx, run); err != nil {
			return err
		}
		for i := range details {
			details[i].RunID = run.ID
		}
		return repo.CreateDetails(ctx, details)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist forecast run")
	}

	out = &Output{
		RunID:        run.ID,
		Origin:       input.Origin,
		ModelName:    modelName,
		ModelVersion: version,
		ResultID:     resultID,
		Predictions:  make([]Prediction, len(input.Items)),
	}
	for i, item := range input.Items {
		var id int64
		if item.ProductID != nil {
			id = *item.ProductID
		}
		out.Predictions[i] = Prediction{
			ProductID:     id,
			ProductName:   item.ProductName,
			TargetMonth:   monthkey.Format(months[i]),
			Prediction:    predictions[i],
			Baseline:      baselines[i].Value,
			Strategy:      baselines[i].Strategy,
			CombinedLabel: details[i].CombinedLabel,
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"run_id":    run.ID,
		"origin":    input.Origin,
		"items":     len(input.Items),
		"model":     modelName,
		"result_id": resultID,
	}), "forecast run stored")
	return out, nil
}

func (s *service) correct(items []Item, months []time.Time, baselines []Baseline) ([]float64, error) {
	maps := s.corrector.Maps()
	rows := make([]FeatureRow, len(items))
	values := make([]float64, len(items))
	for i, item := range items {
		pct := 0.0
		if item.PriorPctChange != nil {
			pct = *item.PriorPctChange
		}
		rows[i] = BuildFeatureRow(maps, item.ProductName, item.Brand, months[i], pct)
		values[i] = baselines[i].Value
	}
	predictions, err := s.corrector.Correct(rows, values)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply forecast model")
	}
	return predictions, nil
}

// classification returns the pinned result, or the latest one. A missing latest result is not an
// error: every item then resolves to a zero baseline.
func (s *service) classification(ctx context.Context, id string) (*abcxyz.Result, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		result, err := s.results.Get(ctx, id)
		if errors.Is(err, abcxyz.ErrResultNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "classification result not found").
				WithDetails(map[string]any{"result_id": id})
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load classification result")
		}
		return result, nil
	}
	result, err := s.results.Latest(ctx, "")
	if errors.Is(err, abcxyz.ErrResultNotFound) {
		s.logg.Warn(ctx, "no classification result available, baselines default to zero")
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest classification")
	}
	return result, nil
}

func (s *service) version() string {
	if s.corrector != nil && s.corrector.artifact.Meta.Version != "" {
		return s.corrector.artifact.Meta.Version
	}
	return s.modelVersion
}

func (s *service) ListRuns(ctx context.Context, params pagination.Params) (*RunList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var after int64
	if cursor != nil {
		after = cursor.ID
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListRuns(ctx, pagination.LimitWithBuffer(params.Limit), after)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list forecast runs")
	}

	list := &RunList{Runs: []RunSummary{}}
	if len(rows) > limit {
		rows = rows[:limit]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{ID: rows[len(rows)-1].ID})
	}
	for _, row := range rows {
		list.Runs = append(list.Runs, summarize(row))
	}
	return list, nil
}

func (s *service) GetRun(ctx context.Context, id int64) (*RunDetail, error) {
	run, err := s.repo.FindRun(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "forecast run not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load forecast run")
	}
	details, err := s.repo.ListDetails(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load forecast details")
	}
	if details == nil {
		details = []DetailView{}
	}
	return &RunDetail{Run: summarize(*run), Details: details}, nil
}

func (s *service) DeleteRun(ctx context.Context, id int64) error {
	var found bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		found, err = s.repo.WithTx(tx).DeleteRun(ctx, id)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete forecast run")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "forecast run not found")
	}
	s.logg.Info(s.logg.WithField(ctx, "run_id", id), "forecast run deleted")
	return nil
}

func (s *service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		removed, err = s.repo.WithTx(tx).DeleteRunsBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purge forecast runs")
	}
	return removed, nil
}

func (s *service) ModelInfo() ModelInfo {
	if s.corrector == nil {
		return ModelInfo{Name: s.modelName, Version: s.modelVersion, Columns: []string{}}
	}
	info := s.corrector.Info()
	info.Name = s.modelName
	info.Loaded = true
	if info.Version == "" {
		info.Version = s.modelVersion
	}
	return info
}

// targetMonths parses every target month and rejects labels outside A/B/C and X/Y/Z.
func targetMonths(items []Item) ([]time.Time, error) {
	months := make([]time.Time, len(items))
	for i, item := range items {
		t, err := monthkey.Parse(strings.TrimSpace(item.TargetMonth))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target month").
				WithDetails(map[string]any{"item": i, "target_month": item.TargetMonth})
		}
		months[i] = monthkey.Start(t)
		if item.ABC != nil && !item.ABC.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid abc label").
				WithDetails(map[string]any{"item": i, "abc": *item.ABC})
		}
		if item.XYZ != nil && !item.XYZ.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid xyz label").
				WithDetails(map[string]any{"item": i, "xyz": *item.XYZ})
		}
	}
	return months, nil
}

// buildRun derives the period from the distinct target months; an empty request records today
// with a zero horizon.
func buildRun(input Input, months []time.Time, modelName, version string, now time.Time) *models.ForecastRun {
	run := &models.ForecastRun{
		Origin:       input.Origin,
		ModelName:    modelName,
		ModelVersion: version,
	}
	if input.RequestedBy != "" {
		requestedBy := input.RequestedBy
		run.RequestedBy = &requestedBy
	}
	if len(months) == 0 {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		run.PeriodStart, run.PeriodEnd = today, today
		return run
	}

	distinct := map[time.Time]struct{}{}
	for _, m := range months {
		distinct[m] = struct{}{}
	}
	sorted := make([]time.Time, 0, len(distinct))
	for m := range distinct {
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	run.PeriodStart = sorted[0]
	run.PeriodEnd = sorted[len(sorted)-1]
	run.HorizonMonths = len(sorted)
	return run
}

func buildDetails(input Input, months []time.Time, predictions []float64, baselines []Baseline) []models.ForecastDetail {
	details := make([]models.ForecastDetail, len(input.Items))
	for i, item := range input.Items {
		d := models.ForecastDetail{
			ProductName:    strings.TrimSpace(item.ProductName),
			TargetMonth:    months[i],
			PredictedValue: decimal.NewFromFloat(predictions[i]).Round(4),
			BaselineValue:  decimal.NewFromFloat(baselines[i].Value).Round(4),
		}
		// spreadsheet rows may name products that do not exist in the catalog
		if input.Origin == enums.ForecastOriginDB && item.ProductID != nil && *item.ProductID != 0 {
			id := *item.ProductID
			d.ProductID = &id
		}
		if item.ABC != nil {
			abc := string(*item.ABC)
			d.ABC = &abc
		}
		if item.XYZ != nil {
			xyz := string(*item.XYZ)
			d.XYZ = &xyz
		}
		if item.ABC != nil && item.XYZ != nil {
			if label := enums.CombinedLabel(*item.ABC, *item.XYZ); label != "" {
				d.CombinedLabel = &label
			}
		}
		details[i] = d
	}
	return details
}

func summarize(run models.ForecastRun) RunSummary {
	return RunSummary{
		ID:            run.ID,
		Origin:        run.Origin,
		ModelName:     run.ModelName,
		ModelVersion:  run.ModelVersion,
		PeriodStart:   run.PeriodStart.Format(time.DateOnly),
		PeriodEnd:     run.PeriodEnd.Format(time.DateOnly),
		HorizonMonths: run.HorizonMonths,
		RequestedBy:   run.RequestedBy,
		CreatedAt:     run.CreatedAt,
	}
}
