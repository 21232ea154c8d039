// Package churn attributes revision, authorship and churn history to a
// method by intersecting first-parent diff hunks with its line range.
//
// Hunks are matched against the method's current line numbers only. Methods
// that moved within their file over time are attributed approximately.
package churn

// Reason explains why history could not be computed.
type Reason string

const (
	// ReasonNone marks a complete history walk.
	ReasonNone Reason = ""
	// ReasonAncestry marks a failed ancestry traversal.
	ReasonAncestry Reason = "ancestry_error"
	// ReasonDiff marks a commit whose diff could not be computed.
	ReasonDiff Reason = "diff_error"
)

// Stats are the change features of one method at one target commit.
type Stats struct {
	Revisions  int
	Authors    int
	Added      int
	Deleted    int
	MaxChurn   int
	TotalChurn int
}

// AvgChurn returns total churn per revision, or zero without revisions.
func (s Stats) AvgChurn() float64 {
	if s.Revisions == 0 {
		return 0
	}

	return float64(s.TotalChurn) / float64(s.Revisions)
}

// Result is the outcome of a history computation. A failed result carries
// zero-valued Stats.
type Result struct {
	Stats
	Reason Reason
	Err    error
}

// OK reports whether the history was computed.
func (r Result) OK() bool {
	return r.Reason == ReasonNone
}

func failed(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}
