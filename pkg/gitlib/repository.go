package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo          *git2go.Repository
	path          string
	detectRenames bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithRenameDetection toggles rename detection in first-parent diffs.
func WithRenameDetection(enabled bool) Option {
	return func(r *Repository) {
		r.detectRenames = enabled
	}
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string, opts ...Option) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return newRepository(repo, path, opts), nil
}

// CloneOrOpen opens the repository at dir when it already exists and clones
// url into dir otherwise.
func CloneOrOpen(ctx context.Context, url, dir string, opts ...Option) (*Repository, error) {
	_, statErr := os.Stat(dir)
	if statErr == nil {
		return OpenRepository(dir, opts...)
	}

	if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", dir, statErr)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mkErr := os.MkdirAll(filepath.Dir(dir), 0o755)
	if mkErr != nil {
		return nil, fmt.Errorf("create clone parent: %w", mkErr)
	}

	repo, err := git2go.Clone(url, dir, &git2go.CloneOptions{})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return newRepository(repo, dir, opts), nil
}

func newRepository(repo *git2go.Repository, path string, opts []Option) *Repository {
	r := &Repository{repo: repo, path: path, detectRenames: true}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit HEAD points at.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}

	return &Commit{commit: commit}, nil
}

// Commit returns the detached view of the commit with the given hash.
func (r *Repository) Commit(ctx context.Context, hash Hash) (CommitInfo, error) {
	commit, err := r.LookupCommit(ctx, hash)
	if err != nil {
		return CommitInfo{}, err
	}
	defer commit.Free()

	return commit.Info(), nil
}
