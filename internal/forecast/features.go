package forecast

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/angelmondragon/abcxyz-forecast/pkg/mlmodel"
)

// Feature column names as the model was trained on them.
const (
	ColBrand           = "marca"
	ColProduct         = "producto"
	ColMonthDate       = "fecha_mes"
	ColPctChange       = "pct_chg_1"
	ColYear            = "year"
	ColMonth           = "month"
	ColQuarter         = "qtr"
	ColKeyMeanTrain    = "key_mean_train"
	ColKeyMonthMean    = "key_month_mean"
	ColKeyMonthFactor  = "key_month_factor"
	ColMonthFactorGlob = "month_factor_glob"
	ColMonthSin        = "month_sin"
	ColMonthCos        = "month_cos"
	ColBrandEncoding   = "te_marca"
)

const brandCategory = "marca"

// FeatureRow is the raw feature set for one product-month.
type FeatureRow struct {
	Brand           string
	Product         string
	MonthDate       time.Time
	PctChange       float64
	Year            int
	Month           int
	Quarter         int
	KeyMeanTrain    float64
	KeyMonthMean    float64
	KeyMonthFactor  float64
	MonthFactorGlob float64
	MonthSin        float64
	MonthCos        float64
	BrandEncoding   float64
}

// BuildFeatureRow derives the calendar, history and encoding features for one item. Products,
// months and brands unseen during training fall back to the global mean.
func BuildFeatureRow(maps mlmodel.FeatureMaps, product, brand string, month time.Time, pctChange float64) FeatureRow {
	m := int(month.Month())
	angle := 2 * math.Pi * float64(m) / 12

	keyMean := lookup(maps.KeyMeanMap, product, maps.GlobalMean)
	keyMonthMean := lookup(maps.KeyMonthMap, fmt.Sprintf("%s:%d", product, m), keyMean)
	monthGlob := lookup(maps.MonthGlobMap, strconv.Itoa(m), maps.GlobalMean)

	return FeatureRow{
		Brand:           brand,
		Product:         product,
		MonthDate:       month,
		PctChange:       pctChange,
		Year:            month.Year(),
		Month:           m,
		Quarter:         (m-1)/3 + 1,
		KeyMeanTrain:    keyMean,
		KeyMonthMean:    keyMonthMean,
		KeyMonthFactor:  ratio(keyMonthMean, keyMean),
		MonthFactorGlob: ratio(monthGlob, maps.GlobalMean),
		MonthSin:        math.Sin(angle),
		MonthCos:        math.Cos(angle),
		BrandEncoding:   lookup(maps.CatMeanMaps[brandCategory], brand, maps.GlobalMean),
	}
}

// Value implements mlmodel.Record.
func (r FeatureRow) Value(column string) (any, bool) {
	switch column {
	case ColBrand:
		return r.Brand, true
	case ColProduct:
		return r.Product, true
	case ColMonthDate:
		return r.MonthDate, true
	case ColPctChange:
		return r.PctChange, true
	case ColYear:
		return float64(r.Year), true
	case ColMonth:
		return float64(r.Month), true
	case ColQuarter:
		return float64(r.Quarter), true
	case ColKeyMeanTrain:
		return r.KeyMeanTrain, true
	case ColKeyMonthMean:
		return r.KeyMonthMean, true
	case ColKeyMonthFactor:
		return r.KeyMonthFactor, true
	case ColMonthFactorGlob:
		return r.MonthFactorGlob, true
	case ColMonthSin:
		return r.MonthSin, true
	case ColMonthCos:
		return r.MonthCos, true
	case ColBrandEncoding:
		return r.BrandEncoding, true
	}
	return nil, false
}

// Ordered lists the row's values in the given column order.
func (r FeatureRow) Ordered(columns []string) ([]any, error) {
	out := make([]any, len(columns))
	for i, col := range columns {
		v, ok := r.Value(col)
		if !ok {
			return nil, fmt.Errorf("unknown feature column %q", col)
		}
		out[i] = v
	}
	return out, nil
}

// CheckColumns verifies that every artifact column can be produced.
func CheckColumns(columns []string) error {
	var sample FeatureRow
	_, err := sample.Ordered(columns)
	return err
}

func lookup(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 1
	}
	return num / den
}
