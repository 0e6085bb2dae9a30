package forecast

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/metrics"
	"github.com/angelmondragon/abcxyz-forecast/pkg/monthkey"
)

// Baseline strategy names, reported per detail and as a metric label.
const (
	StrategyPriorMonth     = "prior_month"
	StrategyLatestMonth    = "latest_month"
	StrategyProductAverage = "product_average"
	StrategyGlobalAverage  = "global_average"
	StrategyGlobalMean     = "global_mean"
	StrategyNoProduct      = "no_product"

	StrategyDirect        = "direct"
	StrategyTrend         = "trend"
	StrategyLastNonZero   = "last_nonzero"
	StrategyMovingAverage = "moving_average"
	StrategyTotalAverage  = "total_average"
	StrategyNoMatch       = "no_match"
)

// Baseline is a resolved value and the step that produced it.
type Baseline struct {
	Value    float64
	Strategy string
}

// SalesHistory answers the monthly aggregates over active sales amounts. A nil value means the
// aggregate has no rows.
type SalesHistory interface {
	MonthTotal(ctx context.Context, productID int64, monthStart time.Time) (*float64, error)
	LatestMonthTotalBefore(ctx context.Context, productID int64, before time.Time) (*float64, error)
	ProductMonthlyAverage(ctx context.Context, productID int64) (*float64, error)
	GlobalMonthlyAverage(ctx context.Context) (*float64, error)
}

type step struct {
	name    string
	resolve func(ctx context.Context) (*float64, error)
}

// DBBaselineResolver resolves lag-1 style baselines from sales history.
type DBBaselineResolver struct {
	history     SalesHistory
	globalMean  float64
	concurrency int
	logg        *logger.Logger
	metrics     *metrics.AnalysisMetrics
}

// NewDBBaselineResolver builds the database cascade. globalMean is the terminal fallback.
func NewDBBaselineResolver(history SalesHistory, globalMean float64, concurrency int, logg *logger.Logger, m *metrics.AnalysisMetrics) *DBBaselineResolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DBBaselineResolver{
		history:     history,
		globalMean:  globalMean,
		concurrency: concurrency,
		logg:        logg,
		metrics:     m,
	}
}

// Resolve walks prior month, latest earlier month, product average and global average, in that
// order, and settles on the artifact's global mean. Storage errors count as "no answer".
func (r *DBBaselineResolver) Resolve(ctx context.Context, productID *int64, target time.Time) Baseline {
	if productID == nil || *productID == 0 {
		r.metrics.IncBaselineStrategy(StrategyNoProduct)
		return Baseline{Strategy: StrategyNoProduct}
	}
	id := *productID
	monthStart := monthkey.Start(target)

	steps := []step{
		{StrategyPriorMonth, func(ctx context.Context) (*float64, error) {
			return r.history.MonthTotal(ctx, id, monthkey.AddMonths(monthStart, -1))
		}},
		{StrategyLatestMonth, func(ctx context.Context) (*float64, error) {
			return r.history.LatestMonthTotalBefore(ctx, id, monthStart)
		}},
		{StrategyProductAverage, func(ctx context.Context) (*float64, error) {
			return r.history.ProductMonthlyAverage(ctx, id)
		}},
		{StrategyGlobalAverage, r.history.GlobalMonthlyAverage},
	}

	for _, s := range steps {
		value, err := s.resolve(ctx)
		if err != nil {
			if r.logg != nil {
				r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
					"product_id": id,
					"strategy":   s.name,
					"error":      err.Error(),
				}), "baseline lookup failed, trying next strategy")
			}
			continue
		}
		if value != nil {
			r.metrics.IncBaselineStrategy(s.name)
			return Baseline{Value: *value, Strategy: s.name}
		}
	}
	r.metrics.IncBaselineStrategy(StrategyGlobalMean)
	return Baseline{Value: r.globalMean, Strategy: StrategyGlobalMean}
}

// ResolveAll resolves items concurrently with bounded parallelism, keeping input order.
func (r *DBBaselineResolver) ResolveAll(ctx context.Context, items []Item, months []time.Time) ([]Baseline, error) {
	out := make([]Baseline, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = r.Resolve(gctx, items[i].ProductID, months[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SpreadsheetBaseline resolves a baseline from a stored classification result. A row whose
// product id matches wins; otherwise the first row whose name matches case-insensitively.
func SpreadsheetBaseline(result *abcxyz.Result, item Item, targetKey string) Baseline {
	if result == nil {
		return Baseline{Strategy: StrategyNoMatch}
	}
	row := matchRow(result.Rows, item)
	if row == nil {
		return Baseline{Strategy: StrategyNoMatch}
	}

	series := row.Amount
	if len(series) == 0 {
		series = row.Quantity
	}

	if v, ok := ValueAt(result.Months, series, targetKey); ok && v > 0 {
		return Baseline{Value: v, Strategy: StrategyDirect}
	}
	if v := Extrapolate(result.Months, series, targetKey); v > 0 {
		return Baseline{Value: v, Strategy: StrategyTrend}
	}
	if v := LastNonZero(series); v > 0 {
		return Baseline{Value: v, Strategy: StrategyLastNonZero}
	}
	if v := MeanLastNonZero(series, trendDeltas); v > 0 {
		return Baseline{Value: v, Strategy: StrategyMovingAverage}
	}
	totalValue := row.TotalRevenue
	if totalValue == 0 {
		totalValue = row.TotalQty
	}
	if totalValue > 0 {
		return Baseline{Value: totalValue / float64(monthkey.WindowSize), Strategy: StrategyTotalAverage}
	}
	return Baseline{Strategy: StrategyTotalAverage}
}

func matchRow(rows []abcxyz.ClassifiedRow, item Item) *abcxyz.ClassifiedRow {
	name := strings.ToLower(strings.TrimSpace(item.ProductName))
	var byName *abcxyz.ClassifiedRow
	for i := range rows {
		r := &rows[i]
		if item.ProductID != nil && *item.ProductID != 0 && r.ProductID != nil && *r.ProductID == *item.ProductID {
			return r
		}
		if byName == nil && name != "" && strings.ToLower(strings.TrimSpace(r.ProductName)) == name {
			byName = r
		}
	}
	return byName
}
