package dataset

import (
	"sort"
)

// Quantile returns the p-quantile of the non-missing values using linear
// interpolation on the order statistics (the q*(n-1) rule). This matches
// the percentile definition the upstream dataset was built with, so the
// top-25/top-10 thresholds and winsorization bounds reproduce exactly.
// Returns Missing when no non-missing values exist.
func Quantile(values []float64, p float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !IsMissing(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return Missing
	}
	sort.Float64s(clean)

	if p <= 0 {
		return clean[0]
	}
	if p >= 1 {
		return clean[len(clean)-1]
	}

	pos := p * float64(len(clean)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(clean) {
		return clean[lo]
	}
	return clean[lo] + frac*(clean[lo+1]-clean[lo])
}

// Mean returns the mean of the non-missing values, or Missing when none exist
func Mean(values []float64) float64 {
	sum := 0.0
	n := 0
	for _, v := range values {
		if !IsMissing(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return Missing
	}
	return sum / float64(n)
}

// Clip returns v clipped to [lo, hi]; missing values pass through
func Clip(v, lo, hi float64) float64 {
	if IsMissing(v) {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
