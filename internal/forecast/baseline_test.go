package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db/models"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&models.Brand{}, &models.Product{}, &models.Sale{},
		&models.ForecastRun{}, &models.ForecastDetail{},
	))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addSale(t *testing.T, conn *gorm.DB, productID int64, at time.Time, amount int64, status int) {
	t.Helper()
	require.NoError(t, conn.Create(&models.Sale{
		ProductID: productID,
		SoldAt:    at,
		Quantity:  decimal.NewFromInt(1),
		Amount:    decimal.NewFromInt(amount),
		Status:    status,
	}).Error)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func ptr(v int64) *int64 { return &v }

func TestDBBaselineCascade(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, conn.Create(&models.Product{ID: 1, Name: "Widget"}).Error)
	require.NoError(t, conn.Create(&models.Product{ID: 2, Name: "Gadget"}).Error)

	addSale(t, conn, 1, day(2024, 1, 10), 100, models.SaleStatusActive)
	addSale(t, conn, 1, day(2024, 1, 20), 50, models.SaleStatusActive)
	addSale(t, conn, 1, day(2024, 3, 5), 30, models.SaleStatusActive)
	addSale(t, conn, 1, day(2024, 3, 6), 999, 0)
	addSale(t, conn, 2, day(2024, 6, 1), 60, models.SaleStatusActive)

	resolver := NewDBBaselineResolver(NewSalesHistoryRepository(conn), 7, 4, testLogger(), nil)
	ctx := context.Background()
	month := func(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }

	cases := []struct {
		name     string
		product  *int64
		target   time.Time
		value    float64
		strategy string
	}{
		{"prior month ignores inactive sales", ptr(1), month(2024, 4), 30, StrategyPriorMonth},
		{"prior month", ptr(1), month(2024, 2), 150, StrategyPriorMonth},
		{"latest earlier month", ptr(1), month(2024, 6), 30, StrategyLatestMonth},
		{"product average", ptr(2), month(2024, 3), 60, StrategyProductAverage},
		{"global average", ptr(3), month(2024, 3), 80, StrategyGlobalAverage},
		{"no product", nil, month(2024, 3), 0, StrategyNoProduct},
		{"zero product", ptr(0), month(2024, 3), 0, StrategyNoProduct},
	}
	for _, tc := range cases {
		got := resolver.Resolve(ctx, tc.product, tc.target)
		assert.Equal(t, tc.strategy, got.Strategy, tc.name)
		assert.InDelta(t, tc.value, got.Value, 1e-9, tc.name)
	}
}

func TestDBBaselineFallsBackToGlobalMean(t *testing.T) {
	conn := newTestDB(t)
	resolver := NewDBBaselineResolver(NewSalesHistoryRepository(conn), 42, 2, testLogger(), nil)
	got := resolver.Resolve(context.Background(), ptr(9), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, Baseline{Value: 42, Strategy: StrategyGlobalMean}, got)
}

type flakyHistory struct{}

func (flakyHistory) MonthTotal(context.Context, int64, time.Time) (*float64, error) {
	return nil, errors.New("connection reset")
}

func (flakyHistory) LatestMonthTotalBefore(context.Context, int64, time.Time) (*float64, error) {
	return nil, errors.New("connection reset")
}

func (flakyHistory) ProductMonthlyAverage(context.Context, int64) (*float64, error) {
	zero := 0.0
	return &zero, nil
}

func (flakyHistory) GlobalMonthlyAverage(context.Context) (*float64, error) {
	return nil, nil
}

func TestDBBaselineSkipsFailingLookups(t *testing.T) {
	resolver := NewDBBaselineResolver(flakyHistory{}, 5, 1, testLogger(), nil)
	got := resolver.Resolve(context.Background(), ptr(1), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	// a zero aggregate is still an answer
	assert.Equal(t, Baseline{Value: 0, Strategy: StrategyProductAverage}, got)
}

func TestResolveAllKeepsOrder(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, conn.Create(&models.Product{ID: 1, Name: "Widget"}).Error)
	for i := 1; i <= 6; i++ {
		addSale(t, conn, 1, day(2024, time.Month(i), 3), int64(i*10), models.SaleStatusActive)
	}
	resolver := NewDBBaselineResolver(NewSalesHistoryRepository(conn), 0, 3, testLogger(), nil)

	var items []Item
	var months []time.Time
	for i := 2; i <= 7; i++ {
		items = append(items, Item{ProductID: ptr(1), ProductName: "Widget"})
		months = append(months, time.Date(2024, time.Month(i), 1, 0, 0, 0, 0, time.UTC))
	}
	got, err := resolver.ResolveAll(context.Background(), items, months)
	require.NoError(t, err)
	require.Len(t, got, len(items))
	for i, b := range got {
		assert.Equal(t, StrategyPriorMonth, b.Strategy)
		assert.InDelta(t, float64((i+1)*10), b.Value, 1e-9)
	}
}

func classified(id *int64, name string, amount []float64) abcxyz.ClassifiedRow {
	row := abcxyz.ClassifiedRow{}
	row.ProductID = id
	row.ProductName = name
	row.Amount = amount
	row.Quantity = amount
	row.TotalRevenue = total(amount)
	row.TotalQty = total(amount)
	return row
}

func TestSpreadsheetBaselineStrategies(t *testing.T) {
	result := &abcxyz.Result{
		Months: []string{"2024-01", "2024-02", "2024-03"},
		Rows: []abcxyz.ClassifiedRow{
			classified(nil, "Widget", []float64{10, 20, 30}),
			classified(ptr(7), "Gadget", []float64{0, 0, 12}),
			classified(nil, " widget ", []float64{1, 1, 1}),
			classified(nil, "Flat", []float64{40, 0, 0}),
			classified(nil, "Empty", []float64{0, 0, 0}),
		},
	}

	cases := []struct {
		item     Item
		target   string
		value    float64
		strategy string
	}{
		{Item{ProductName: "WIDGET"}, "2024-02", 20, StrategyDirect},
		{Item{ProductName: "Widget"}, "2024-05", 50, StrategyTrend},
		{Item{ProductID: ptr(7), ProductName: "renamed"}, "2024-01", 12, StrategyTrend},
		{Item{ProductName: "Flat"}, "2024-03", 40, StrategyTrend},
		{Item{ProductName: "Empty"}, "2024-04", 0, StrategyTotalAverage},
		{Item{ProductName: "Missing"}, "2024-04", 0, StrategyNoMatch},
	}
	for _, tc := range cases {
		got := SpreadsheetBaseline(result, tc.item, tc.target)
		assert.Equal(t, tc.strategy, got.Strategy, tc.item.ProductName)
		assert.InDelta(t, tc.value, got.Value, 1e-9, tc.item.ProductName)
	}

	assert.Equal(t, Baseline{Strategy: StrategyNoMatch}, SpreadsheetBaseline(nil, Item{ProductName: "Widget"}, "2024-01"))
}

func TestSpreadsheetBaselineFallbacks(t *testing.T) {
	// a series that trends down to zero ahead of the window
	result := &abcxyz.Result{
		Months: []string{"2024-01", "2024-02", "2024-03"},
		Rows:   []abcxyz.ClassifiedRow{classified(nil, "Fading", []float64{10, 30, 50})},
	}
	got := SpreadsheetBaseline(result, Item{ProductName: "fading"}, "2023-06")
	assert.Equal(t, Baseline{Value: 50, Strategy: StrategyLastNonZero}, got)

	// totals are the last resort when the series carries nothing usable
	totals := classified(nil, "Totals", []float64{0, 0, 0})
	totals.TotalRevenue = 120
	result.Rows = []abcxyz.ClassifiedRow{totals}
	got = SpreadsheetBaseline(result, Item{ProductName: "Totals"}, "2024-05")
	assert.Equal(t, Baseline{Value: 10, Strategy: StrategyTotalAverage}, got)
}
