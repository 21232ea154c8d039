package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// FileContent returns the content of path as of the given commit.
func (r *Repository) FileContent(ctx context.Context, hash Hash, path string) ([]byte, error) {
	commit, err := r.LookupCommit(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(path)
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, fmt.Errorf("%s@%s: %w", path, hash.Short(), ErrFileNotFound)
		}

		return nil, fmt.Errorf("entry by path: %w", err)
	}

	if entry.Type != git2go.ObjectBlob {
		return nil, fmt.Errorf("%s@%s: %w", path, hash.Short(), ErrFileNotFound)
	}

	blob, err := r.repo.LookupBlob(entry.Id)
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}
	defer blob.Free()

	content := blob.Contents()
	out := make([]byte, len(content))
	copy(out, content)

	return out, nil
}

// ListFiles returns the paths of every blob in the commit's tree.
func (r *Repository) ListFiles(ctx context.Context, hash Hash) ([]string, error) {
	commit, err := r.LookupCommit(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	var files []string

	err = r.walkTree(ctx, tree, "", func(path string) {
		files = append(files, path)
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// walkTree recursively visits the blobs below tree.
func (r *Repository) walkTree(ctx context.Context, tree *git2go.Tree, prefix string, visit func(path string)) error {
	for i := range tree.EntryCount() {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		path := entry.Name
		if prefix != "" {
			path = prefix + "/" + path
		}

		switch entry.Type {
		case git2go.ObjectBlob:
			visit(path)
		case git2go.ObjectTree:
			sub, err := r.repo.LookupTree(entry.Id)
			if err != nil {
				return fmt.Errorf("lookup tree %s: %w", path, err)
			}

			err = r.walkTree(ctx, sub, path, visit)
			sub.Free()

			if err != nil {
				return err
			}
		default:
			// Submodule commits and other entries have no content here.
		}
	}

	return nil
}
