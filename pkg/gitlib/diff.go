package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// DiffToParent diffs the commit against its first parent and returns every
// changed file with its edit hunks. Root commits yield ErrNoParent.
func (r *Repository) DiffToParent(ctx context.Context, hash Hash) ([]FileChange, error) {
	commit, err := r.LookupCommit(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	if commit.NumParents() == 0 {
		return nil, fmt.Errorf("diff %s: %w", hash.Short(), ErrNoParent)
	}

	parent := commit.commit.Parent(0)
	if parent == nil {
		return nil, fmt.Errorf("diff %s: %w", hash.Short(), ErrNoParent)
	}
	defer parent.Free()

	oldTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("get parent tree: %w", err)
	}
	defer oldTree.Free()

	newTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	if oldTree.Id().Equal(newTree.Id()) {
		return nil, nil
	}

	return r.diffTrees(oldTree, newTree)
}

func (r *Repository) diffTrees(oldTree, newTree *git2go.Tree) ([]FileChange, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	// Zero context keeps one hunk per edit region.
	opts.ContextLines = 0
	opts.InterhunkLines = 0

	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	if r.detectRenames {
		findOpts, findErr := git2go.DefaultDiffFindOptions()
		if findErr != nil {
			return nil, fmt.Errorf("get find options: %w", findErr)
		}

		findOpts.Flags = git2go.DiffFindRenames

		findErr = diff.FindSimilar(&findOpts)
		if findErr != nil {
			return nil, fmt.Errorf("detect renames: %w", findErr)
		}
	}

	var changes []FileChange

	noLines := func(git2go.DiffLine) error { return nil }

	err = diff.ForEach(func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		action, ok := actionFromDelta(delta.Status)
		if !ok {
			return func(git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) { return noLines, nil }, nil
		}

		change := FileChange{OldPath: delta.OldFile.Path, NewPath: delta.NewFile.Path, Action: action}

		switch action {
		case Insert:
			change.OldPath = ""
		case Delete:
			change.NewPath = ""
		case Modify, Rename, Copy:
		}

		changes = append(changes, change)
		idx := len(changes) - 1

		return func(h git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			changes[idx].Hunks = append(changes[idx].Hunks, hunkFromNative(h.OldStart, h.OldLines, h.NewStart, h.NewLines))

			return noLines, nil
		}, nil
	}, git2go.DiffDetailHunks)
	if err != nil {
		return nil, fmt.Errorf("walk diff: %w", err)
	}

	return changes, nil
}
