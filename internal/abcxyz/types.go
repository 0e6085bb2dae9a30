package abcxyz

import (
	"fmt"
	"time"

	"github.com/angelmondragon/abcxyz-forecast/pkg/config"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
)

// Cutoffs holds the ABC share thresholds and XYZ variability thresholds.
type Cutoffs struct {
	ACut float64 `json:"a_cut"`
	BCut float64 `json:"b_cut"`
	XCut float64 `json:"x_cut"`
	YCut float64 `json:"y_cut"`
}

// DefaultCutoffs returns the configured fallback thresholds.
func DefaultCutoffs(cfg config.ClassificationConfig) Cutoffs {
	return Cutoffs{
		ACut: cfg.DefaultACut,
		BCut: cfg.DefaultBCut,
		XCut: cfg.DefaultXCut,
		YCut: cfg.DefaultYCut,
	}
}

// Validate enforces 0 < a < b < 1 and 0 <= x < y.
func (c Cutoffs) Validate() error {
	problems := map[string]string{}
	if !(c.ACut > 0 && c.ACut < c.BCut && c.BCut < 1) {
		problems["abc"] = fmt.Sprintf("requires 0 < a_cut < b_cut < 1, got a_cut=%g b_cut=%g", c.ACut, c.BCut)
	}
	if !(c.XCut >= 0 && c.XCut < c.YCut) {
		problems["xyz"] = fmt.Sprintf("requires 0 <= x_cut < y_cut, got x_cut=%g y_cut=%g", c.XCut, c.YCut)
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid classification cutoffs").WithDetails(problems)
	}
	return nil
}

// ProductSeries is one item's quantity and amount per window month.
type ProductSeries struct {
	ProductID   *int64    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Brand       string    `json:"brand"`
	Quantity    []float64 `json:"qty_series"`
	Amount      []float64 `json:"amt_series"`
}

// ClassifiedRow is a ProductSeries with its totals and labels.
type ClassifiedRow struct {
	ProductSeries
	TotalQty        float64        `json:"total_qty"`
	TotalRevenue    float64        `json:"total_revenue"`
	CV              float64        `json:"cv"`
	CumulativeShare float64        `json:"cumulative_share"`
	ABC             enums.ABCLabel `json:"abc"`
	XYZ             enums.XYZLabel `json:"xyz"`
	ABCXYZ          string         `json:"abcxyz"`
}

// Matrix counts rows per ABC/XYZ pair.
type Matrix struct {
	Grid    map[enums.ABCLabel]map[enums.XYZLabel]int     `json:"grid"`
	Percent map[enums.ABCLabel]map[enums.XYZLabel]float64 `json:"percent"`
}

// Totals summarises a result.
type Totals struct {
	Revenue float64 `json:"revenue"`
	Items   int     `json:"items"`
}

// TopSeries is a chart-ready quantity series.
type TopSeries struct {
	Name     string    `json:"name"`
	Quantity []float64 `json:"qty"`
}

// Result is one classification run.
type Result struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Source    enums.ResultSource `json:"source"`
	FileName  string             `json:"file_name,omitempty"`
	Cutoffs   Cutoffs            `json:"cutoffs"`
	Months    []string           `json:"months"`
	Rows      []ClassifiedRow    `json:"rows"`
	Matrix    Matrix             `json:"matrix"`
	Totals    Totals             `json:"totals"`
	TopSeries []TopSeries        `json:"top_series"`
}

// CatalogItem is a product as read from the catalog.
type CatalogItem struct {
	ID    int64
	Name  string
	Brand string
}

// SaleRecord is one sales line reduced to what aggregation needs.
type SaleRecord struct {
	ProductID int64
	SoldAt    time.Time
	Quantity  float64
	Amount    float64
}

// Precheck reports whether a database classification has data to work with.
type Precheck struct {
	Products      int64    `json:"products"`
	Sales         int64    `json:"sales"`
	SalesInWindow int64    `json:"sales_in_window"`
	Months        []string `json:"months"`
	Ready         bool     `json:"ready"`
	Reasons       []string `json:"reasons"`
	Cutoffs       Cutoffs  `json:"cutoffs"`
}

const (
	ReasonNoProducts      = "no_products"
	ReasonNoSales         = "no_sales"
	ReasonNoSalesInWindow = "no_sales_in_window"
)
