package defect

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

// keyPattern matches tracker keys such as BOOKKEEPER-1234.
var keyPattern = regexp.MustCompile(`([A-Z][A-Z0-9]+-\d+)`)

// CommitLog lists commits in traversal order.
type CommitLog interface {
	LogAll(ctx context.Context) ([]gitlib.CommitInfo, error)
}

// LinkStats summarises a fix-commit scan.
type LinkStats struct {
	Scanned  int
	Linked   int
	Unlinked int
}

// KeysIn returns the defect keys mentioned in a commit message, in order.
func KeysIn(message string) []string {
	return keyPattern.FindAllString(message, -1)
}

// Link scans the commit log and gives every defect the first commit whose
// message mentions its key. The commit's author time becomes the resolution
// date. Later mentions of an already linked key are ignored.
func Link(ctx context.Context, log CommitLog, defects []*Defect) (LinkStats, error) {
	byKey := make(map[string]*Defect, len(defects))
	for _, d := range defects {
		byKey[d.Key] = d
	}

	commits, err := log.LogAll(ctx)
	if err != nil {
		return LinkStats{}, fmt.Errorf("scan commit log: %w", err)
	}

	stats := LinkStats{Scanned: len(commits)}

	for _, c := range commits {
		for _, key := range KeysIn(c.Message) {
			d, ok := byKey[key]
			if !ok || d.HasFix() {
				continue
			}

			d.FixCommit = c.Hash
			d.Resolved = c.Author.When
			stats.Linked++
		}
	}

	stats.Unlinked = len(byKey) - stats.Linked

	return stats, nil
}
