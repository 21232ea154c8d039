package gitlib

import (
	"context"
	"crypto/sha1" //nolint:gosec // object ids, not security
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
)

// MemoryCommit describes one commit of a MemoryRepo.
type MemoryCommit struct {
	Author  Signature
	Message string
	Parents []Hash
	// Files is the full snapshot of the tree at this commit.
	Files map[string]string
	// Changes is what DiffToParent reports for this commit.
	Changes []FileChange
}

// MemoryRepo is an in-memory repository for unit tests. It serves the same
// read operations as Repository and is safe for concurrent reads once built.
type MemoryRepo struct {
	commits   map[Hash]MemoryCommit
	order     []Hash
	tags      map[string]Hash
	diffErrs  map[Hash]error
	diffCalls atomic.Int64
}

// NewMemoryRepo creates an empty in-memory repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		commits:  make(map[Hash]MemoryCommit),
		tags:     make(map[string]Hash),
		diffErrs: make(map[Hash]error),
	}
}

// Add stores a commit and returns its generated hash.
func (m *MemoryRepo) Add(c MemoryCommit) Hash {
	h := Hash(sha1.Sum([]byte("memory-commit-" + strconv.Itoa(len(m.order))))) //nolint:gosec // test ids
	m.commits[h] = c
	m.order = append(m.order, h)

	return h
}

// Tag points a tag name at a commit.
func (m *MemoryRepo) Tag(name string, hash Hash) {
	m.tags[name] = hash
}

// FailDiff makes DiffToParent return err for the commit.
func (m *MemoryRepo) FailDiff(hash Hash, err error) {
	m.diffErrs[hash] = err
}

// DiffCalls returns how many times DiffToParent ran.
func (m *MemoryRepo) DiffCalls() int {
	return int(m.diffCalls.Load())
}

// Commit returns the commit metadata.
func (m *MemoryRepo) Commit(_ context.Context, hash Hash) (CommitInfo, error) {
	c, ok := m.commits[hash]
	if !ok {
		return CommitInfo{}, fmt.Errorf("lookup commit %s: not found", hash.Short())
	}

	return m.info(hash, c), nil
}

func (m *MemoryRepo) info(hash Hash, c MemoryCommit) CommitInfo {
	return CommitInfo{Hash: hash, Author: c.Author, Message: c.Message, Parents: slices.Clone(c.Parents)}
}

// Ancestors returns target and every commit reachable from it.
func (m *MemoryRepo) Ancestors(ctx context.Context, target Hash) ([]CommitInfo, error) {
	seen := map[Hash]bool{}
	queue := []Hash{target}

	var out []CommitInfo

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		if seen[h] {
			continue
		}

		seen[h] = true

		info, err := m.Commit(ctx, h)
		if err != nil {
			return nil, err
		}

		out = append(out, info)
		queue = append(queue, info.Parents...)
	}

	return out, nil
}

// LogAll returns every commit, newest first.
func (m *MemoryRepo) LogAll(_ context.Context) ([]CommitInfo, error) {
	out := make([]CommitInfo, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		h := m.order[i]
		out = append(out, m.info(h, m.commits[h]))
	}

	return out, nil
}

// DiffToParent returns the configured changes of the commit.
func (m *MemoryRepo) DiffToParent(_ context.Context, hash Hash) ([]FileChange, error) {
	m.diffCalls.Add(1)

	if err, ok := m.diffErrs[hash]; ok {
		return nil, err
	}

	c, ok := m.commits[hash]
	if !ok {
		return nil, fmt.Errorf("lookup commit %s: not found", hash.Short())
	}

	if len(c.Parents) == 0 {
		return nil, fmt.Errorf("diff %s: %w", hash.Short(), ErrNoParent)
	}

	return slices.Clone(c.Changes), nil
}

// FileContent returns the file content at a commit.
func (m *MemoryRepo) FileContent(_ context.Context, hash Hash, path string) ([]byte, error) {
	content, ok := m.commits[hash].Files[path]
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", path, hash.Short(), ErrFileNotFound)
	}

	return []byte(content), nil
}

// ListFiles returns the sorted paths in the commit's snapshot.
func (m *MemoryRepo) ListFiles(_ context.Context, hash Hash) ([]string, error) {
	files := make([]string, 0, len(m.commits[hash].Files))
	for path := range m.commits[hash].Files {
		files = append(files, path)
	}

	slices.Sort(files)

	return files, nil
}

// ResolveTag returns the commit a tag points at.
func (m *MemoryRepo) ResolveTag(_ context.Context, name string) (Hash, error) {
	h, ok := m.tags[name]
	if !ok {
		return Hash{}, fmt.Errorf("%s: %w", name, ErrTagNotFound)
	}

	return h, nil
}

// Tags returns the sorted tag names.
func (m *MemoryRepo) Tags(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.tags))
	for name := range m.tags {
		names = append(names, name)
	}

	slices.Sort(names)

	return names, nil
}
