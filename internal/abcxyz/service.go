package abcxyz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/abcxyz-forecast/pkg/db/models"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/metrics"
	"github.com/angelmondragon/abcxyz-forecast/pkg/monthkey"
)

type repository interface {
	Catalog(ctx context.Context) ([]CatalogItem, error)
	SalesBetween(ctx context.Context, from, to time.Time) ([]SaleRecord, error)
	CountProducts(ctx context.Context) (int64, error)
	CountSales(ctx context.Context, from, to *time.Time) (int64, error)
	GetCutoffs(ctx context.Context) (*models.ABCXYZCutoffs, error)
	SaveCutoffs(ctx context.Context, row *models.ABCXYZCutoffs) error
}

// Service runs classifications and manages their thresholds and stored results.
type Service interface {
	ClassifyFromDatabase(ctx context.Context) (*Result, error)
	ClassifyFromFile(ctx context.Context, fileName string, content []byte) (*Result, error)
	LastResult(ctx context.Context, source enums.ResultSource) (*Result, error)
	GetResult(ctx context.Context, id string) (*Result, error)
	Cutoffs(ctx context.Context) (Cutoffs, error)
	UpdateCutoffs(ctx context.Context, cutoffs Cutoffs, updatedBy string) (Cutoffs, error)
	Precheck(ctx context.Context) (*Precheck, error)
	Template(format string) (*TemplateFile, error)
}

type service struct {
	repo     repository
	store    ResultStore
	defaults Cutoffs
	logg     *logger.Logger
	metrics  *metrics.AnalysisMetrics
	now      func() time.Time
}

// NewService wires the classification service.
func NewService(repo repository, store ResultStore, defaults Cutoffs, logg *logger.Logger, m *metrics.AnalysisMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("abcxyz repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("result store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default cutoffs: %w", err)
	}
	return &service{
		repo:     repo,
		store:    store,
		defaults: defaults,
		logg:     logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

func (s *service) ClassifyFromDatabase(ctx context.Context) (result *Result, err error) {
	defer func() { s.metrics.ObserveClassification(string(enums.ResultSourceDB), rowCount(result), err) }()

	cutoffs, err := s.activeCutoffs(ctx)
	if err != nil {
		return nil, err
	}

	months := monthkey.Last12(s.now().UTC())
	from, to := windowBounds(months)

	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load catalog")
	}
	sales, err := s.repo.SalesBetween(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sales")
	}

	result = Classify(months, AggregateSeries(catalog, sales, months), cutoffs)
	if err := s.publish(ctx, result, enums.ResultSourceDB, ""); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"result_id": result.ID,
		"source":    result.Source,
		"rows":      len(result.Rows),
		"sales":     len(sales),
	})
	s.logg.Info(ctx, "database classification completed")
	return result, nil
}

func (s *service) ClassifyFromFile(ctx context.Context, fileName string, content []byte) (result *Result, err error) {
	defer func() { s.metrics.ObserveClassification(string(enums.ResultSourceSpreadsheet), rowCount(result), err) }()

	if len(content) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "uploaded file is empty")
	}
	cutoffs, err := s.activeCutoffs(ctx)
	if err != nil {
		return nil, err
	}

	sheet, err := ParseSpreadsheet(fileName, content, s.now())
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"file_name": fileName, "error": err.Error()}), "spreadsheet rejected")
		return nil, err
	}

	result = Classify(sheet.Months, sheet.Series, cutoffs)
	if err := s.publish(ctx, result, enums.ResultSourceSpreadsheet, fileName); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"result_id": result.ID,
		"source":    result.Source,
		"rows":      len(result.Rows),
		"file_name": fileName,
		"months":    strings.Join(result.Months, ","),
	})
	s.logg.Info(ctx, "spreadsheet classification completed")
	return result, nil
}

func (s *service) publish(ctx context.Context, result *Result, source enums.ResultSource, fileName string) error {
	result.ID = uuid.NewString()
	result.CreatedAt = s.now().UTC()
	result.Source = source
	result.FileName = fileName
	if err := s.store.Save(ctx, result); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store classification result")
	}
	return nil
}

func (s *service) LastResult(ctx context.Context, source enums.ResultSource) (*Result, error) {
	result, err := s.store.Latest(ctx, source)
	if errors.Is(err, ErrResultNotFound) {
		msg := "no classification has been run yet"
		if source != "" {
			msg = fmt.Sprintf("no recent classification with source %q", source)
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest classification")
	}
	return result, nil
}

func (s *service) GetResult(ctx context.Context, id string) (*Result, error) {
	result, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrResultNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "classification result not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load classification result")
	}
	return result, nil
}

func (s *service) Cutoffs(ctx context.Context) (Cutoffs, error) {
	row, err := s.repo.GetCutoffs(ctx)
	if err != nil {
		return Cutoffs{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cutoffs")
	}
	if row == nil {
		return s.defaults, nil
	}
	return Cutoffs{ACut: row.ACut, BCut: row.BCut, XCut: row.XCut, YCut: row.YCut}, nil
}

// activeCutoffs refuses to classify with thresholds that break the ordering rules.
func (s *service) activeCutoffs(ctx context.Context) (Cutoffs, error) {
	cutoffs, err := s.Cutoffs(ctx)
	if err != nil {
		return Cutoffs{}, err
	}
	if err := cutoffs.Validate(); err != nil {
		return Cutoffs{}, err
	}
	return cutoffs, nil
}

func (s *service) UpdateCutoffs(ctx context.Context, cutoffs Cutoffs, updatedBy string) (Cutoffs, error) {
	if err := cutoffs.Validate(); err != nil {
		return Cutoffs{}, err
	}
	row := &models.ABCXYZCutoffs{
		ACut: cutoffs.ACut,
		BCut: cutoffs.BCut,
		XCut: cutoffs.XCut,
		YCut: cutoffs.YCut,
	}
	if updatedBy != "" {
		row.UpdatedBy = &updatedBy
	}
	if err := s.repo.SaveCutoffs(ctx, row); err != nil {
		return Cutoffs{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cutoffs")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"a_cut": cutoffs.ACut, "b_cut": cutoffs.BCut, "x_cut": cutoffs.XCut, "y_cut": cutoffs.YCut,
	}), "classification cutoffs updated")
	return cutoffs, nil
}

func (s *service) Precheck(ctx context.Context) (*Precheck, error) {
	cutoffs, err := s.Cutoffs(ctx)
	if err != nil {
		return nil, err
	}
	months := monthkey.Last12(s.now().UTC())
	from, to := windowBounds(months)

	products, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count products")
	}
	sales, err := s.repo.CountSales(ctx, nil, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count sales")
	}
	inWindow, err := s.repo.CountSales(ctx, &from, &to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count sales in window")
	}

	reasons := []string{}
	if products == 0 {
		reasons = append(reasons, ReasonNoProducts)
	}
	if sales == 0 {
		reasons = append(reasons, ReasonNoSales)
	}
	if inWindow == 0 {
		reasons = append(reasons, ReasonNoSalesInWindow)
	}
	return &Precheck{
		Products:      products,
		Sales:         sales,
		SalesInWindow: inWindow,
		Months:        months,
		Ready:         len(reasons) == 0,
		Reasons:       reasons,
		Cutoffs:       cutoffs,
	}, nil
}

func (s *service) Template(format string) (*TemplateFile, error) {
	return BuildTemplate(format, s.now())
}

// windowBounds returns [first month start, month after last) for a key window.
func windowBounds(months []string) (time.Time, time.Time) {
	first, _ := monthkey.Parse(months[0])
	last, _ := monthkey.Parse(months[len(months)-1])
	return first, monthkey.AddMonths(last, 1)
}

func rowCount(r *Result) int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}
