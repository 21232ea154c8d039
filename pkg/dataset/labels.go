package dataset

import (
	"github.com/Sumatoshi-tech/faultline/pkg/bugmap"
	"github.com/Sumatoshi-tech/faultline/pkg/defect"
)

// Labels answers whether a method is buggy in a release.
type Labels struct {
	byMethod map[string][]*defect.Defect
}

// NewLabels indexes defects by the method keys their fixes touched. Defects
// absent from the index contribute no labels.
func NewLabels(defects []*defect.Defect, touched bugmap.Index) Labels {
	byMethod := make(map[string][]*defect.Defect)

	for _, d := range defects {
		for _, key := range touched.Touched(d.Key) {
			byMethod[key] = append(byMethod[key], d)
		}
	}

	return Labels{byMethod: byMethod}
}

// Buggy reports whether any defect touching the method affects the release,
// that is introduction <= index < fixed.
func (l Labels) Buggy(methodKey string, releaseIndex int) bool {
	for _, d := range l.byMethod[methodKey] {
		if d.AffectsRelease(releaseIndex) {
			return true
		}
	}

	return false
}

// Methods returns the number of distinct methods touched by any defect.
func (l Labels) Methods() int {
	return len(l.byMethod)
}
