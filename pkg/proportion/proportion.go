// Package proportion implements the Proportion heuristic that estimates a
// defect's introduction release from defects whose lifecycle is fully known.
package proportion

import (
	"math"

	"github.com/Sumatoshi-tech/faultline/pkg/alg/stats"
	"github.com/Sumatoshi-tech/faultline/pkg/defect"
)

// DefaultCoefficient is used when no defect has a fully known lifecycle.
const DefaultCoefficient = 1.5

// Estimator computes the coefficient once over the whole defect population
// and fills in missing introduction indices from it.
type Estimator struct {
	// Fallback replaces DefaultCoefficient when positive.
	Fallback float64
}

// Coefficient returns the median of (FV-IV)/(FV-OV) over fully known
// defects, or the fallback when none qualify.
func (e Estimator) Coefficient(defects []*defect.Defect) float64 {
	var ratios []float64

	for _, d := range defects {
		if !d.FullyKnown() {
			continue
		}

		ratios = append(ratios, float64(d.Fixed-d.Introduction)/float64(d.Fixed-d.Opening))
	}

	if len(ratios) == 0 {
		if e.Fallback > 0 {
			return e.Fallback
		}

		return DefaultCoefficient
	}

	return stats.Median(ratios)
}

// Estimate returns the introduction index implied by the coefficient, or
// ok=false when the defect does not qualify: its introduction is already
// known, or fixed and opening are not both known with fixed > opening.
func Estimate(d *defect.Defect, coefficient float64) (int, bool) {
	if defect.Known(d.Introduction) || !defect.Known(d.Fixed) || !defect.Known(d.Opening) || d.Fixed <= d.Opening {
		return 0, false
	}

	raw := float64(d.Fixed) - float64(d.Fixed-d.Opening)*coefficient

	// Half-up rounding.
	return max(int(math.Floor(raw+0.5)), 1), true
}

// Apply computes the coefficient from the population first, then fills every
// qualifying unknown introduction index. It returns the coefficient and the
// number of defects estimated.
func (e Estimator) Apply(defects []*defect.Defect) (float64, int) {
	coefficient := e.Coefficient(defects)

	estimated := 0

	for _, d := range defects {
		iv, ok := Estimate(d, coefficient)
		if !ok {
			continue
		}

		d.Introduction = iv
		d.Estimated = true
		estimated++
	}

	return coefficient, estimated
}
