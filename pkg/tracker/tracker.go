// Package tracker defines the issue-tracker view the mining pipeline reads:
// the project's released versions and its fixed defect reports.
package tracker

import (
	"context"

	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

// Source supplies releases and defects of one project.
type Source interface {
	// Releases returns the released versions ordered by date with indices assigned.
	Releases(ctx context.Context) ([]release.Release, error)
	// Defects returns fixed bug reports with every release index unknown.
	Defects(ctx context.Context) ([]*defect.Defect, error)
}
