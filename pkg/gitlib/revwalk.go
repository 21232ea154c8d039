package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Ancestors returns target and every commit reachable from it, each once.
func (r *Repository) Ancestors(ctx context.Context, target Hash) ([]CommitInfo, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTopological | git2go.SortTime)

	err = walk.Push(target.ToOid())
	if err != nil {
		return nil, fmt.Errorf("push %s to revwalk: %w", target.Short(), err)
	}

	return collect(ctx, walk)
}

// LogAll returns the commits reachable from any reference or HEAD, newest
// first, like git log --all.
func (r *Repository) LogAll(ctx context.Context) ([]CommitInfo, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTime)

	err = walk.PushGlob("refs/*")
	if err != nil {
		return nil, fmt.Errorf("push refs to revwalk: %w", err)
	}

	// Detached HEAD is not under refs/. An unborn HEAD is not an error here.
	_ = walk.PushHead()

	return collect(ctx, walk)
}

func collect(ctx context.Context, walk *git2go.RevWalk) ([]CommitInfo, error) {
	var commits []CommitInfo

	iterErr := walk.Iterate(func(native *git2go.Commit) bool {
		if ctx.Err() != nil {
			return false
		}

		commit := &Commit{commit: native}
		commits = append(commits, commit.Info())
		commit.Free()

		return true
	})
	if iterErr != nil {
		return nil, fmt.Errorf("revwalk iterate: %w", iterErr)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return commits, nil
}
