package gitlib

import (
	"context"
	"fmt"
	"slices"

	git2go "github.com/libgit2/git2go/v34"
)

const tagRefPrefix = "refs/tags/"

// ResolveTag peels the tag with the given short name to the commit it marks.
// Both lightweight and annotated tags resolve.
func (r *Repository) ResolveTag(_ context.Context, name string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(tagRefPrefix + name + "^{commit}")
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) ||
			git2go.IsErrorCode(err, git2go.ErrorCodeInvalidSpec) ||
			git2go.IsErrorCode(err, git2go.ErrorCodeAmbiguous) {
			return Hash{}, fmt.Errorf("%s: %w", name, ErrTagNotFound)
		}

		return Hash{}, fmt.Errorf("resolve tag %s: %w", name, err)
	}
	defer obj.Free()

	return HashFromOid(obj.Id()), nil
}

// Tags returns the short names of all tags, sorted.
func (r *Repository) Tags(_ context.Context) ([]string, error) {
	names, err := r.repo.Tags.List()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	slices.Sort(names)

	return names, nil
}
