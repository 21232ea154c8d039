package churn

import (
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

// touch is what one commit changed in one path.
type touch struct {
	author string
	hunks  []gitlib.Hunk
}

// Index holds the hunks of a target's ancestry grouped by path. It is
// read-only once Prepare returns it and safe for concurrent Collect calls.
type Index struct {
	target  gitlib.Hash
	commits int
	touches map[string][]touch
	failure Result
}

// Target returns the commit the index was built for.
func (idx *Index) Target() gitlib.Hash {
	return idx.target
}

// Commits returns the number of ancestors walked.
func (idx *Index) Commits() int {
	return idx.commits
}

// Err returns the failure that makes every Collect call fail, if any.
func (idx *Index) Err() error {
	return idx.failure.Err
}

// add records one commit. Entries whose old or new path is the same path are
// merged so the commit counts once for it.
func (idx *Index) add(author string, changes []gitlib.FileChange) {
	merged := make(map[string][]gitlib.Hunk)

	var order []string

	for _, change := range changes {
		for _, path := range change.Paths() {
			if _, seen := merged[path]; !seen {
				order = append(order, path)
				merged[path] = nil
			}

			merged[path] = append(merged[path], change.Hunks...)
		}
	}

	for _, path := range order {
		idx.touches[path] = append(idx.touches[path], touch{author: author, hunks: merged[path]})
	}
}

// Collect accumulates the statistics of the method at path spanning
// [start, end] in the target snapshot. A commit counts as one revision and one
// author when any of its hunks overlaps the range; all overlapping hunks add
// to its line counts and churn.
func (idx *Index) Collect(path string, start, end int) Result {
	if !idx.failure.OK() {
		return idx.failure
	}

	var stats Stats

	authors := make(map[string]struct{})

	for _, t := range idx.touches[path] {
		churn := 0
		hit := false

		for _, h := range t.hunks {
			if !h.OverlapsNew(start, end) {
				continue
			}

			if !hit {
				hit = true
				stats.Revisions++
				authors[t.author] = struct{}{}
			}

			stats.Added += h.Added()
			stats.Deleted += h.Deleted()
			churn += h.Added() + h.Deleted()
		}

		if !hit {
			continue
		}

		stats.TotalChurn += churn
		stats.MaxChurn = max(stats.MaxChurn, churn)
	}

	stats.Authors = len(authors)

	return Result{Stats: stats}
}
