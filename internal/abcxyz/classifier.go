package abcxyz

import (
	"sort"

	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
)

const topSeriesLimit = 3

// Classify ranks series by revenue (or quantity when no row has revenue), labels them with the
// cutoffs and builds the matrix, totals and top series. The returned result has no id, timestamp
// or source; callers stamp those.
func Classify(months []string, series []ProductSeries, cutoffs Cutoffs) *Result {
	rows := make([]ClassifiedRow, len(series))
	var totalRevenue, totalQty float64
	for i, s := range series {
		qty := sum(s.Quantity)
		revenue := sum(s.Amount)
		rows[i] = ClassifiedRow{
			ProductSeries: s,
			TotalQty:      qty,
			TotalRevenue:  revenue,
			CV:            CoefficientOfVariation(s.Quantity),
		}
		totalRevenue += revenue
		totalQty += qty
	}

	useQty := totalRevenue == 0
	weight := func(r ClassifiedRow) float64 {
		if useQty {
			return r.TotalQty
		}
		return r.TotalRevenue
	}
	base := totalRevenue
	if useQty {
		base = totalQty
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return weight(rows[i]) > weight(rows[j])
	})

	var cum float64
	for i := range rows {
		cum += weight(rows[i])
		share := 0.0
		if base > 0 {
			share = cum / base
		}
		rows[i].CumulativeShare = share
		rows[i].ABC = abcLabel(share, cutoffs)
		rows[i].XYZ = xyzLabel(rows[i].CV, cutoffs)
		rows[i].ABCXYZ = enums.CombinedLabel(rows[i].ABC, rows[i].XYZ)
	}

	return &Result{
		Cutoffs:   cutoffs,
		Months:    append([]string(nil), months...),
		Rows:      rows,
		Matrix:    buildMatrix(rows),
		Totals:    Totals{Revenue: totalRevenue, Items: len(rows)},
		TopSeries: topSeries(rows),
	}
}

func abcLabel(share float64, c Cutoffs) enums.ABCLabel {
	switch {
	case share <= c.ACut:
		return enums.ABCLabelA
	case share <= c.BCut:
		return enums.ABCLabelB
	default:
		return enums.ABCLabelC
	}
}

func xyzLabel(cv float64, c Cutoffs) enums.XYZLabel {
	switch {
	case cv <= c.XCut:
		return enums.XYZLabelX
	case cv <= c.YCut:
		return enums.XYZLabelY
	default:
		return enums.XYZLabelZ
	}
}

func buildMatrix(rows []ClassifiedRow) Matrix {
	m := Matrix{
		Grid:    make(map[enums.ABCLabel]map[enums.XYZLabel]int, len(enums.ABCLabels)),
		Percent: make(map[enums.ABCLabel]map[enums.XYZLabel]float64, len(enums.ABCLabels)),
	}
	for _, a := range enums.ABCLabels {
		m.Grid[a] = make(map[enums.XYZLabel]int, len(enums.XYZLabels))
		m.Percent[a] = make(map[enums.XYZLabel]float64, len(enums.XYZLabels))
		for _, x := range enums.XYZLabels {
			m.Grid[a][x] = 0
			m.Percent[a][x] = 0
		}
	}
	for _, r := range rows {
		m.Grid[r.ABC][r.XYZ]++
	}
	if len(rows) == 0 {
		return m
	}
	for _, a := range enums.ABCLabels {
		for _, x := range enums.XYZLabels {
			m.Percent[a][x] = float64(m.Grid[a][x]) / float64(len(rows)) * 100
		}
	}
	return m
}

func topSeries(rows []ClassifiedRow) []TopSeries {
	ranked := make([]ClassifiedRow, len(rows))
	copy(ranked, rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalQty > ranked[j].TotalQty
	})
	if len(ranked) > topSeriesLimit {
		ranked = ranked[:topSeriesLimit]
	}
	out := make([]TopSeries, len(ranked))
	for i, r := range ranked {
		out[i] = TopSeries{Name: r.ProductName, Quantity: r.Quantity}
	}
	return out
}
