// Package defect models tracker defect reports and derives the release
// indices that bound each defect's lifetime.
package defect

import (
	"time"

	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

// Defect is a fixed bug report from the issue tracker. The fix commit,
// resolution date and the three release indices are filled in by Link and
// AssignIndices; indices stay release.Unknown until then.
type Defect struct {
	Key              string    `json:"key"               yaml:"key"`
	Created          time.Time `json:"created"           yaml:"created"`
	AffectedVersions []string  `json:"affected_versions" yaml:"affected_versions"`

	Resolved  time.Time   `json:"-" yaml:"-"`
	FixCommit gitlib.Hash `json:"-" yaml:"-"`

	Opening      int `json:"-" yaml:"-"`
	Fixed        int `json:"-" yaml:"-"`
	Introduction int `json:"-" yaml:"-"`
	// Estimated marks an Introduction index filled in by the proportion
	// heuristic rather than taken from affected versions.
	Estimated bool `json:"-" yaml:"-"`
}

// New returns a defect with every index set to release.Unknown.
func New(key string, created time.Time, affected []string) *Defect {
	return &Defect{
		Key:              key,
		Created:          created,
		AffectedVersions: affected,
		Opening:          release.Unknown,
		Fixed:            release.Unknown,
		Introduction:     release.Unknown,
	}
}

// HasFix reports whether a fix commit was linked.
func (d *Defect) HasFix() bool {
	return !d.FixCommit.IsZero()
}

// Known reports whether an index refers to a release.
func Known(index int) bool {
	return index > 0
}

// FullyKnown reports whether all three indices are known and the defect was
// fixed in a later release than the one it was opened in.
func (d *Defect) FullyKnown() bool {
	return Known(d.Introduction) && Known(d.Fixed) && Known(d.Opening) && d.Fixed > d.Opening
}

// AffectsRelease reports whether the release index lies in the half-open
// interval [Introduction, Fixed).
func (d *Defect) AffectsRelease(index int) bool {
	return Known(d.Introduction) && Known(d.Fixed) && d.Introduction <= index && index < d.Fixed
}

// AssignIndices sets Opening from the creation date, Fixed from the
// resolution date when one was found, and Introduction from the earliest
// affected version that names a known release.
func AssignIndices(defects []*Defect, ordered []release.Release) {
	byName := release.IndexByName(ordered)

	for _, d := range defects {
		d.Opening = release.IndexForDate(d.Created, ordered)

		d.Fixed = release.Unknown
		if !d.Resolved.IsZero() {
			d.Fixed = release.IndexForDate(d.Resolved, ordered)
		}

		d.Introduction = release.Unknown
		d.Estimated = false

		for _, name := range d.AffectedVersions {
			idx, ok := byName[name]
			if !ok {
				continue
			}

			if d.Introduction == release.Unknown || idx < d.Introduction {
				d.Introduction = idx
			}
		}
	}
}
