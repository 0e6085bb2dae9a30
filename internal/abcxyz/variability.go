package abcxyz

import "math"

// ErraticCV is returned for series with no positive mean.
const ErraticCV = 999.0

// CoefficientOfVariation is the population standard deviation over the mean.
func CoefficientOfVariation(series []float64) float64 {
	if len(series) == 0 {
		return ErraticCV
	}
	mean := sum(series) / float64(len(series))
	if mean <= 0 {
		return ErraticCV
	}
	var sq float64
	for _, v := range series {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(series))) / mean
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
