package forecast

import "github.com/angelmondragon/abcxyz-forecast/pkg/monthkey"

const trendDeltas = 3

// ValueAt returns the series cell for target when months and series line up.
func ValueAt(months []string, series []float64, target string) (float64, bool) {
	if len(months) == 0 || len(months) != len(series) {
		return 0, false
	}
	for i, key := range months {
		if key == target {
			return series[i], true
		}
	}
	return 0, false
}

// Extrapolate estimates the series at a month outside its window. After the window it
// projects from the last non-zero value along the average of the latest positive deltas;
// before the window it walks back from the first value along the earliest positive deltas.
// Inputs without usable months degrade to the series' own level. The result is never negative.
func Extrapolate(months []string, series []float64, target string) float64 {
	if len(months) == 0 || len(months) != len(series) {
		return degenerate(series)
	}
	first, errFirst := monthkey.Index(months[0])
	last, errLast := monthkey.Index(months[len(months)-1])
	t, errTarget := monthkey.Index(target)
	if errFirst != nil || errLast != nil || errTarget != nil {
		return degenerate(series)
	}

	switch {
	case t > last:
		anchor := LastNonZero(series)
		if anchor == 0 {
			anchor = series[len(series)-1]
		}
		deltas := positiveDeltas(series)
		if len(deltas) > trendDeltas {
			deltas = deltas[len(deltas)-trendDeltas:]
		}
		return nonNegative(anchor + float64(t-last)*mean(deltas))
	case t < first:
		deltas := positiveDeltas(series)
		if len(deltas) > trendDeltas {
			deltas = deltas[:trendDeltas]
		}
		return nonNegative(series[0] - float64(first-t)*mean(deltas))
	default:
		return nonNegative(LastNonZero(series))
	}
}

func degenerate(series []float64) float64 {
	if v := LastNonZero(series); v != 0 {
		return nonNegative(v)
	}
	if v := MeanLastNonZero(series, trendDeltas); v != 0 {
		return nonNegative(v)
	}
	if len(series) > 0 {
		return nonNegative(total(series) / float64(len(series)))
	}
	return 0
}

// positiveDeltas lists v[i]-v[i-1] for consecutive pairs that are both positive.
func positiveDeltas(series []float64) []float64 {
	var deltas []float64
	for i := 1; i < len(series); i++ {
		if series[i] > 0 && series[i-1] > 0 {
			deltas = append(deltas, series[i]-series[i-1])
		}
	}
	return deltas
}

// LastNonZero returns the last positive value, or 0.
func LastNonZero(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] > 0 {
			return series[i]
		}
	}
	return 0
}

// MeanLastNonZero averages the last k positive values, or returns 0 when there are none.
func MeanLastNonZero(series []float64, k int) float64 {
	var picked []float64
	for i := len(series) - 1; i >= 0 && len(picked) < k; i-- {
		if series[i] > 0 {
			picked = append(picked, series[i])
		}
	}
	return mean(picked)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return total(values) / float64(len(values))
}

func total(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
