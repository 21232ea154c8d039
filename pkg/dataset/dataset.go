// Package dataset assembles the labelled method dataset: for each analysed
// release it extracts methods, computes their static and change features and
// marks them buggy when a defect alive in that release touched them.
package dataset

import (
	"context"

	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

// Duplication is the constant value of the duplication feature.
const Duplication = 0

// Row is one method of one release.
type Row struct {
	Project     string
	MethodID    string
	MethodName  string
	Release     string
	LOC         int
	Complexity  int
	Parameters  int
	Duplication int
	NR          int
	NAuth       int
	Added       int
	Deleted     int
	MaxChurn    int
	AvgChurn    float64
	Buggy       bool
}

// BuggyLabel returns the yes/no label of the row.
func (r Row) BuggyLabel() string {
	if r.Buggy {
		return "yes"
	}

	return "no"
}

// Sink receives the rows of each analysed release in release order.
type Sink interface {
	WriteRelease(ctx context.Context, rel release.Release, rows []Row) error
	Close() error
}

// Report summarises a mining run.
type Report struct {
	Project          string   `json:"project"           yaml:"project"`
	Releases         int      `json:"releases"          yaml:"releases"`
	Selected         int      `json:"selected"          yaml:"selected"`
	Analysed         int      `json:"analysed"          yaml:"analysed"`
	Skipped          []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Rows             int      `json:"rows"              yaml:"rows"`
	BuggyRows        int      `json:"buggy_rows"        yaml:"buggy_rows"`
	ParseFailures    int      `json:"parse_failures"    yaml:"parse_failures"`
	HistoryFailures  int      `json:"history_failures"  yaml:"history_failures"`
	Defects          int      `json:"defects"           yaml:"defects"`
	DefectsLinked    int      `json:"defects_linked"    yaml:"defects_linked"`
	DefectsUnlinked  int      `json:"defects_unlinked"  yaml:"defects_unlinked"`
	DefectsMapped    int      `json:"defects_mapped"    yaml:"defects_mapped"`
	DefectsEstimated int      `json:"defects_estimated" yaml:"defects_estimated"`
	Coefficient      float64  `json:"coefficient"       yaml:"coefficient"`
}
