package abcxyz

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
)

var testCutoffs = Cutoffs{ACut: 0.80, BCut: 0.95, XCut: 0.50, YCut: 0.90}

func flat(v float64) []float64 {
	out := make([]float64, 12)
	for i := range out {
		out[i] = v
	}
	return out
}

func named(name string, qty, amt []float64) ProductSeries {
	return ProductSeries{ProductName: name, Quantity: qty, Amount: amt}
}

func TestCoefficientOfVariation(t *testing.T) {
	if got := CoefficientOfVariation(flat(0)); got != ErraticCV {
		t.Fatalf("all-zero series: expected %v got %v", ErraticCV, got)
	}
	if got := CoefficientOfVariation(flat(7)); got != 0 {
		t.Fatalf("constant series: expected 0 got %v", got)
	}
	// population stddev of {0,2} repeated is 1, mean 1
	alt := make([]float64, 12)
	for i := range alt {
		if i%2 == 1 {
			alt[i] = 2
		}
	}
	if got := CoefficientOfVariation(alt); math.Abs(got-1) > 1e-12 {
		t.Fatalf("alternating series: expected 1 got %v", got)
	}
	single := flat(0)
	single[11] = 5
	if got := CoefficientOfVariation(single); got == ErraticCV {
		t.Fatalf("series with one sale must not get the sentinel")
	}
}

func TestClassifyStableTiesAndLabels(t *testing.T) {
	series := []ProductSeries{
		named("first", flat(1), flat(10)),
		named("second", flat(1), flat(10)),
		named("big", flat(5), flat(100)),
	}
	res := Classify([]string{"m"}, series, testCutoffs)

	got := []string{res.Rows[0].ProductName, res.Rows[1].ProductName, res.Rows[2].ProductName}
	want := []string{"big", "first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v", got)
	}
	// shares: 1200/1440, 1320/1440, 1
	if res.Rows[0].ABC != enums.ABCLabelB || res.Rows[1].ABC != enums.ABCLabelB || res.Rows[2].ABC != enums.ABCLabelC {
		t.Fatalf("unexpected abc labels %s %s %s", res.Rows[0].ABC, res.Rows[1].ABC, res.Rows[2].ABC)
	}
	for _, r := range res.Rows {
		if r.XYZ != enums.XYZLabelX || r.ABCXYZ != string(r.ABC)+"X" {
			t.Fatalf("unexpected xyz for %s: %s %s", r.ProductName, r.XYZ, r.ABCXYZ)
		}
	}
	if res.Totals.Items != 3 || res.Totals.Revenue != 1440 {
		t.Fatalf("unexpected totals %+v", res.Totals)
	}
}

func TestClassifyCumulativeShareMonotoneToOne(t *testing.T) {
	series := []ProductSeries{}
	for i := 0; i < 9; i++ {
		series = append(series, named("p", flat(float64(i)), flat(float64(i*i))))
	}
	res := Classify(nil, series, testCutoffs)
	prev := 0.0
	for _, r := range res.Rows {
		if r.CumulativeShare < prev {
			t.Fatalf("share decreased: %v after %v", r.CumulativeShare, prev)
		}
		prev = r.CumulativeShare
	}
	if math.Abs(prev-1) > 1e-9 {
		t.Fatalf("expected final share 1, got %v", prev)
	}
}

func TestClassifyFallsBackToQuantityWhenNoRevenue(t *testing.T) {
	series := []ProductSeries{
		named("low", flat(1), flat(0)),
		named("high", flat(9), flat(0)),
	}
	res := Classify(nil, series, testCutoffs)
	if res.Rows[0].ProductName != "high" {
		t.Fatalf("expected quantity ranking, got %s first", res.Rows[0].ProductName)
	}
	if res.Rows[0].CumulativeShare != 0.9 {
		t.Fatalf("expected quantity share 0.9, got %v", res.Rows[0].CumulativeShare)
	}
	if res.Totals.Revenue != 0 {
		t.Fatalf("revenue total should stay 0, got %v", res.Totals.Revenue)
	}
}

func TestClassifyMatrixTotals(t *testing.T) {
	series := []ProductSeries{
		named("a", flat(10), flat(10)),
		named("b", append(flat(0)[:11], 4), append(flat(0)[:11], 4)),
		named("c", flat(0), flat(0)),
		named("d", flat(3), flat(3)),
	}
	res := Classify(nil, series, testCutoffs)

	count := 0
	pct := 0.0
	for _, a := range enums.ABCLabels {
		for _, x := range enums.XYZLabels {
			count += res.Matrix.Grid[a][x]
			pct += res.Matrix.Percent[a][x]
		}
	}
	if count != len(series) {
		t.Fatalf("matrix count %d != rows %d", count, len(series))
	}
	if math.Abs(pct-100) > 1e-9 {
		t.Fatalf("percentages sum to %v", pct)
	}
	for _, r := range res.Rows {
		if r.ProductName == "c" && (r.CV != ErraticCV || r.XYZ != enums.XYZLabelZ) {
			t.Fatalf("all-zero row should be Z with sentinel cv, got %v %s", r.CV, r.XYZ)
		}
	}
}

func TestClassifyEmpty(t *testing.T) {
	res := Classify([]string{"2024-01"}, nil, testCutoffs)
	if len(res.Rows) != 0 || res.Totals.Items != 0 || len(res.TopSeries) != 0 {
		t.Fatalf("unexpected empty result %+v", res)
	}
	for _, a := range enums.ABCLabels {
		for _, x := range enums.XYZLabels {
			if res.Matrix.Grid[a][x] != 0 || res.Matrix.Percent[a][x] != 0 {
				t.Fatalf("expected zero matrix cell %s%s", a, x)
			}
		}
	}
}

func TestClassifyTopSeriesByQuantity(t *testing.T) {
	series := []ProductSeries{
		named("rev", flat(1), flat(1000)),
		named("q1", flat(8), flat(8)),
		named("q2", flat(8), flat(8)),
		named("q3", flat(9), flat(9)),
		named("q4", flat(2), flat(2)),
	}
	res := Classify(nil, series, testCutoffs)
	if len(res.TopSeries) != 3 {
		t.Fatalf("expected 3 top series, got %d", len(res.TopSeries))
	}
	got := []string{res.TopSeries[0].Name, res.TopSeries[1].Name, res.TopSeries[2].Name}
	if !reflect.DeepEqual(got, []string{"q3", "q1", "q2"}) {
		t.Fatalf("unexpected top series %v", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	series := []ProductSeries{
		named("x", flat(3), flat(30)),
		named("y", flat(3), flat(30)),
		named("z", flat(1), flat(5)),
	}
	first := Classify([]string{"k"}, series, testCutoffs)
	second := Classify([]string{"k"}, series, testCutoffs)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical results for identical input")
	}
}

func TestCutoffsValidate(t *testing.T) {
	if err := testCutoffs.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	bad := []Cutoffs{
		{ACut: 0.9, BCut: 0.8, XCut: 0.5, YCut: 0.9},
		{ACut: 0, BCut: 0.8, XCut: 0.5, YCut: 0.9},
		{ACut: 0.5, BCut: 1, XCut: 0.5, YCut: 0.9},
		{ACut: 0.5, BCut: 0.8, XCut: 0.9, YCut: 0.9},
		{ACut: 0.5, BCut: 0.8, XCut: -0.1, YCut: 0.9},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected %+v to be rejected", c)
		}
	}
}

func TestAggregateSeries(t *testing.T) {
	months := []string{"2024-01", "2024-02"}
	catalog := []CatalogItem{{ID: 2, Name: "two", Brand: "B"}, {ID: 1, Name: "one"}}
	sales := []SaleRecord{
		{ProductID: 1, SoldAt: mustMonth(t, "2024-01"), Quantity: 2, Amount: 20},
		{ProductID: 1, SoldAt: mustMonth(t, "2024-01").AddDate(0, 0, 10), Quantity: 1, Amount: 10},
		{ProductID: 1, SoldAt: mustMonth(t, "2024-02"), Quantity: 4, Amount: 40},
		{ProductID: 1, SoldAt: mustMonth(t, "2023-12"), Quantity: 100, Amount: 100},
		{ProductID: 9, SoldAt: mustMonth(t, "2024-01"), Quantity: 100, Amount: 100},
	}
	out := AggregateSeries(catalog, sales, months)
	if len(out) != 2 || out[0].ProductName != "two" || *out[0].ProductID != 2 {
		t.Fatalf("catalog order not preserved: %+v", out)
	}
	if !reflect.DeepEqual(out[0].Quantity, []float64{0, 0}) || out[0].Brand != "B" {
		t.Fatalf("expected zero series for product without sales, got %+v", out[0])
	}
	if !reflect.DeepEqual(out[1].Quantity, []float64{3, 4}) || !reflect.DeepEqual(out[1].Amount, []float64{30, 40}) {
		t.Fatalf("unexpected sums %+v", out[1])
	}
}

func TestAggregateSeriesBucketsInUTC(t *testing.T) {
	months := []string{"2024-01", "2024-02"}
	catalog := []CatalogItem{{ID: 1, Name: "one"}}
	bogota := time.FixedZone("COT", -5*3600)
	sales := []SaleRecord{
		// 2024-02-01 02:00 UTC, still January on the local clock
		{ProductID: 1, SoldAt: time.Date(2024, 1, 31, 21, 0, 0, 0, bogota), Quantity: 5, Amount: 50},
	}
	out := AggregateSeries(catalog, sales, months)
	if !reflect.DeepEqual(out[0].Quantity, []float64{0, 5}) {
		t.Fatalf("expected the sale in the UTC month, got %v", out[0].Quantity)
	}
}
