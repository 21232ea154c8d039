// Package release orders project releases chronologically and maps calendar
// dates onto 1-based release indices.
package release

import (
	"slices"
	"time"
)

// Unknown is the sentinel index for a date or version that maps to no release.
const Unknown = -1

// DateLayout is the calendar date layout used by trackers and fixtures.
const DateLayout = "2006-01-02"

// Release is a named project release with its calendar date and index.
type Release struct {
	Name  string    `json:"name"  yaml:"name"`
	Date  time.Time `json:"date"  yaml:"date"`
	Index int       `json:"index" yaml:"index"`
}

// Day truncates t to its calendar date in t's own location and returns it at
// midnight UTC, so that dates from different zones compare by wall-clock day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AssignIndices returns a copy of releases sorted by date ascending with
// 1-based indices. Releases sharing a date keep their input order.
func AssignIndices(releases []Release) []Release {
	ordered := make([]Release, len(releases))
	for i, r := range releases {
		r.Date = Day(r.Date)
		ordered[i] = r
	}

	slices.SortStableFunc(ordered, func(a, b Release) int {
		return a.Date.Compare(b.Date)
	})

	for i := range ordered {
		ordered[i].Index = i + 1
	}

	return ordered
}

// IndexForDate returns the index of the earliest release whose date is not
// before date. Dates after every release map to the last release. An empty
// list yields Unknown.
func IndexForDate(date time.Time, ordered []Release) int {
	if len(ordered) == 0 {
		return Unknown
	}

	day := Day(date)

	for _, r := range ordered {
		if !day.After(r.Date) {
			return r.Index
		}
	}

	return ordered[len(ordered)-1].Index
}

// IndexByName maps release names to their indices.
func IndexByName(ordered []Release) map[string]int {
	byName := make(map[string]int, len(ordered))
	for _, r := range ordered {
		byName[r.Name] = r.Index
	}

	return byName
}

// Leading returns the first int(len*fraction) releases of an ordered list.
func Leading(ordered []Release, fraction float64) []Release {
	n := int(float64(len(ordered)) * fraction)

	return ordered[:min(max(n, 0), len(ordered))]
}
