package churn_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/faultline/pkg/churn"
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

var (
	alice = gitlib.Signature{Name: "Alice", Email: "alice@example.com"}
	bob   = gitlib.Signature{Name: "Bob", Email: "bob@example.com"}
)

func modify(path string, hunks ...gitlib.Hunk) gitlib.FileChange {
	return gitlib.FileChange{OldPath: path, NewPath: path, Action: gitlib.Modify, Hunks: hunks}
}

// history builds root -> c1 -> c2 -> c3 touching A.java around lines 10..20.
func history(t *testing.T) (*gitlib.MemoryRepo, gitlib.Hash) {
	t.Helper()

	repo := gitlib.NewMemoryRepo()
	root := repo.Add(gitlib.MemoryCommit{
		Author:  alice,
		Changes: []gitlib.FileChange{modify("A.java", gitlib.Hunk{OldBegin: 0, OldEnd: 50, NewBegin: 0, NewEnd: 50})},
	})
	c1 := repo.Add(gitlib.MemoryCommit{
		Author:  alice,
		Parents: []gitlib.Hash{root},
		Changes: []gitlib.FileChange{modify("A.java", gitlib.Hunk{OldBegin: 10, OldEnd: 12, NewBegin: 10, NewEnd: 14})},
	})
	c2 := repo.Add(gitlib.MemoryCommit{
		Author:  bob,
		Parents: []gitlib.Hash{c1},
		Changes: []gitlib.FileChange{
			modify("A.java",
				gitlib.Hunk{OldBegin: 15, OldEnd: 15, NewBegin: 15, NewEnd: 17},
				gitlib.Hunk{OldBegin: 18, OldEnd: 19, NewBegin: 20, NewEnd: 21},
				gitlib.Hunk{OldBegin: 40, OldEnd: 41, NewBegin: 42, NewEnd: 42},
			),
			modify("Other.java", gitlib.Hunk{OldBegin: 10, OldEnd: 11, NewBegin: 10, NewEnd: 11}),
		},
	})
	c3 := repo.Add(gitlib.MemoryCommit{
		Author:  alice,
		Parents: []gitlib.Hash{c2},
		Changes: []gitlib.FileChange{modify("A.java", gitlib.Hunk{OldBegin: 0, OldEnd: 1, NewBegin: 0, NewEnd: 1})},
	})

	return repo, c3
}

func TestCollect_AggregatesOverlappingHunks(t *testing.T) {
	t.Parallel()

	repo, target := history(t)

	res := churn.NewCollector(repo).Collect(context.Background(), "A.java", 10, 20, target)
	require.True(t, res.OK(), "%v", res.Err)

	assert.Equal(t, churn.Stats{
		Revisions:  2,
		Authors:    2,
		Added:      7,
		Deleted:    3,
		MaxChurn:   6,
		TotalChurn: 10,
	}, res.Stats)
	assert.InDelta(t, 5.0, res.AvgChurn(), 1e-9)
}

func TestCollect_OneRevisionPerCommit(t *testing.T) {
	t.Parallel()

	repo, target := history(t)

	res := churn.NewCollector(repo).Collect(context.Background(), "A.java", 15, 20, target)
	require.True(t, res.OK())

	assert.Equal(t, 1, res.Revisions, "c2 has two overlapping hunks but is one revision")
	assert.Equal(t, 1, res.Authors)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, 1, res.Deleted)
}

func TestCollect_NoHistory(t *testing.T) {
	t.Parallel()

	repo, target := history(t)

	res := churn.NewCollector(repo).Collect(context.Background(), "Missing.java", 1, 100, target)
	require.True(t, res.OK())

	assert.Equal(t, churn.Stats{}, res.Stats)
	assert.Zero(t, res.AvgChurn())
}

func TestCollect_RootCommitSkipped(t *testing.T) {
	t.Parallel()

	repo := gitlib.NewMemoryRepo()
	root := repo.Add(gitlib.MemoryCommit{Author: alice})

	res := churn.NewCollector(repo).Collect(context.Background(), "A.java", 1, 10, root)
	require.True(t, res.OK())
	assert.Zero(t, res.Revisions)
	assert.Zero(t, repo.DiffCalls())
}

func TestCollect_RenameMatchesBothPaths(t *testing.T) {
	t.Parallel()

	repo := gitlib.NewMemoryRepo()
	root := repo.Add(gitlib.MemoryCommit{Author: alice})
	moved := repo.Add(gitlib.MemoryCommit{
		Author:  bob,
		Parents: []gitlib.Hash{root},
		Changes: []gitlib.FileChange{{
			OldPath: "old/A.java",
			NewPath: "new/A.java",
			Action:  gitlib.Rename,
			Hunks:   []gitlib.Hunk{{OldBegin: 4, OldEnd: 5, NewBegin: 4, NewEnd: 6}},
		}},
	})

	idx, err := churn.NewCollector(repo).Prepare(context.Background(), moved)
	require.NoError(t, err)

	assert.Equal(t, 1, idx.Collect("new/A.java", 1, 10).Revisions)
	assert.Equal(t, 1, idx.Collect("old/A.java", 1, 10).Revisions)
}

func TestCollect_EntriesOfSamePathMergePerCommit(t *testing.T) {
	t.Parallel()

	repo := gitlib.NewMemoryRepo()
	root := repo.Add(gitlib.MemoryCommit{Author: alice})
	c := repo.Add(gitlib.MemoryCommit{
		Author:  bob,
		Parents: []gitlib.Hash{root},
		Changes: []gitlib.FileChange{
			{OldPath: "B.java", NewPath: "A.java", Action: gitlib.Copy, Hunks: []gitlib.Hunk{{OldBegin: 1, OldEnd: 2, NewBegin: 1, NewEnd: 2}}},
			modify("A.java", gitlib.Hunk{OldBegin: 3, OldEnd: 3, NewBegin: 3, NewEnd: 5}),
		},
	})

	res := churn.NewCollector(repo).Collect(context.Background(), "A.java", 1, 10, c)
	require.True(t, res.OK())

	assert.Equal(t, 1, res.Revisions)
	assert.Equal(t, 4, res.MaxChurn)
}

func TestCollect_DiffFailureYieldsPlaceholder(t *testing.T) {
	t.Parallel()

	repo, target := history(t)
	repo.FailDiff(target, errors.New("corrupt tree"))

	res := churn.NewCollector(repo).Collect(context.Background(), "A.java", 10, 20, target)

	assert.False(t, res.OK())
	assert.Equal(t, churn.ReasonDiff, res.Reason)
	require.Error(t, res.Err)
	assert.Equal(t, churn.Stats{}, res.Stats)
}

func TestCollect_AncestryFailure(t *testing.T) {
	t.Parallel()

	repo := gitlib.NewMemoryRepo()

	res := churn.NewCollector(repo).Collect(context.Background(), "A.java", 1, 2, gitlib.Hash{1})

	assert.Equal(t, churn.ReasonAncestry, res.Reason)
	assert.Zero(t, res.Revisions)
}

func TestPrepare_MemoizesDiffs(t *testing.T) {
	t.Parallel()

	repo, target := history(t)
	collector := churn.NewCollector(repo, churn.WithDiffCacheEntries(16))

	first, err := collector.Prepare(context.Background(), target)
	require.NoError(t, err)

	calls := repo.DiffCalls()
	assert.Equal(t, 3, calls)

	second, err := collector.Prepare(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, calls, repo.DiffCalls())
	assert.Equal(t, first.Collect("A.java", 10, 20), second.Collect("A.java", 10, 20))
	assert.Equal(t, 4, second.Commits())
	assert.Equal(t, target, second.Target())
	assert.Equal(t, int64(3), collector.CacheStats().Hits)
}

func TestPrepare_Canceled(t *testing.T) {
	t.Parallel()

	repo, target := history(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := churn.NewCollector(repo).Prepare(ctx, target)
	require.ErrorIs(t, err, context.Canceled)
}
