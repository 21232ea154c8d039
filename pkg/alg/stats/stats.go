// Package stats provides order statistics over float samples.
package stats

import (
	"math"
	"slices"
)

// PercentileMedian is the p of the median.
const PercentileMedian = 0.5

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. p must be in [0, 1]. The input is
// not modified. Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the middle value, or the mean of the two middle values for
// an even count. Returns 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}
