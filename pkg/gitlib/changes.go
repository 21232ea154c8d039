package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file's content changed in place.
	Modify
	// Rename indicates a file moved, possibly with content changes.
	Rename
	// Copy indicates a file was copied from another path.
	Copy
)

// String returns the lower-case action name.
func (a ChangeAction) String() string {
	switch a {
	case Insert:
		return "add"
	case Delete:
		return "delete"
	case Modify:
		return "modify"
	case Rename:
		return "rename"
	case Copy:
		return "copy"
	default:
		return "unknown"
	}
}

// Hunk is one edit region of a file diff. Begin offsets are zero-based line
// positions and End offsets are exclusive, so a pure insertion has
// OldBegin == OldEnd and a pure deletion has NewBegin == NewEnd.
type Hunk struct {
	OldBegin int
	OldEnd   int
	NewBegin int
	NewEnd   int
}

// Added returns the number of lines the hunk introduces.
func (h Hunk) Added() int {
	return h.NewEnd - h.NewBegin
}

// Deleted returns the number of lines the hunk removes.
func (h Hunk) Deleted() int {
	return h.OldEnd - h.OldBegin
}

// OverlapsNew reports whether the hunk touches the inclusive line range
// [start, end] in post-change coordinates. The comparison mixes the caller's
// 1-based lines with the hunk's offsets exactly as max(start, NewBegin) <=
// min(end, NewEnd).
func (h Hunk) OverlapsNew(start, end int) bool {
	return max(start, h.NewBegin) <= min(end, h.NewEnd)
}

// FileChange is one entry of a tree diff with its edit hunks.
type FileChange struct {
	OldPath string
	NewPath string
	Action  ChangeAction
	Hunks   []Hunk
}

// Paths returns the distinct non-empty paths of the change, old side first.
func (c FileChange) Paths() []string {
	switch {
	case c.OldPath == "":
		return []string{c.NewPath}
	case c.NewPath == "" || c.NewPath == c.OldPath:
		return []string{c.OldPath}
	default:
		return []string{c.OldPath, c.NewPath}
	}
}

func actionFromDelta(status git2go.Delta) (ChangeAction, bool) {
	switch status {
	case git2go.DeltaAdded:
		return Insert, true
	case git2go.DeltaDeleted:
		return Delete, true
	case git2go.DeltaModified:
		return Modify, true
	case git2go.DeltaRenamed:
		return Rename, true
	case git2go.DeltaCopied:
		return Copy, true
	default:
		return 0, false
	}
}

// hunkFromNative converts a zero-context libgit2 hunk header into edit
// offsets. libgit2 reports 1-based starts, except that an empty side carries
// the line after which the change sits.
func hunkFromNative(oldStart, oldLines, newStart, newLines int) Hunk {
	oldBegin := oldStart - 1
	if oldLines == 0 {
		oldBegin = oldStart
	}

	newBegin := newStart - 1
	if newLines == 0 {
		newBegin = newStart
	}

	return Hunk{
		OldBegin: oldBegin,
		OldEnd:   oldBegin + oldLines,
		NewBegin: newBegin,
		NewEnd:   newBegin + newLines,
	}
}
