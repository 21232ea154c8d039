package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

// testRepo wraps a scratch repository built with libgit2.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
	clock  time.Time
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		clock:  time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (tr *testRepo) writeFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

func (tr *testRepo) removeFile(name string) {
	tr.t.Helper()

	require.NoError(tr.t, os.Remove(filepath.Join(tr.path, name)))
}

// commit stages the working tree and commits it on HEAD. Each commit is one
// hour after the previous one.
func (tr *testRepo) commit(message, email string) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.UpdateAll([]string{"*"}, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	tr.clock = tr.clock.Add(time.Hour)
	sig := &git2go.Signature{Name: "Dev", Email: email, When: tr.clock}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

func (tr *testRepo) lightweightTag(name string, hash gitlib.Hash) {
	tr.t.Helper()

	commit, err := tr.native.LookupCommit(hash.ToOid())
	require.NoError(tr.t, err)

	defer commit.Free()

	_, err = tr.native.Tags.CreateLightweight(name, commit, false)
	require.NoError(tr.t, err)
}

func (tr *testRepo) annotatedTag(name string, hash gitlib.Hash) {
	tr.t.Helper()

	commit, err := tr.native.LookupCommit(hash.ToOid())
	require.NoError(tr.t, err)

	defer commit.Free()

	sig := &git2go.Signature{Name: "Rel", Email: "rel@example.com", When: tr.clock}

	_, err = tr.native.Tags.Create(name, commit, sig, "release "+name)
	require.NoError(tr.t, err)
}

func (tr *testRepo) open() *gitlib.Repository {
	tr.t.Helper()

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(tr.t, err)

	tr.t.Cleanup(repo.Free)

	return repo
}

const fiveLines = "l1\nl2\nl3\nl4\nl5\n"

func TestOpenRepository(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "content\n")
	first := tr.commit("initial", "a@example.com")

	repo := tr.open()

	assert.Equal(t, tr.path, repo.Path())

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, first, head)
}

func TestOpenRepositoryNotFound(t *testing.T) {
	t.Parallel()

	_, err := gitlib.OpenRepository(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestCloneOrOpen(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "content\n")
	first := tr.commit("initial", "a@example.com")

	dest := filepath.Join(t.TempDir(), "work", "PROJ")

	cloned, err := gitlib.CloneOrOpen(context.Background(), tr.path, dest)
	require.NoError(t, err)

	head, err := cloned.Head()
	require.NoError(t, err)
	assert.Equal(t, first, head)
	cloned.Free()

	reopened, err := gitlib.CloneOrOpen(context.Background(), "unused://url", dest)
	require.NoError(t, err)

	defer reopened.Free()

	assert.Equal(t, dest, reopened.Path())
}

func TestCommitInfo(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "one\n")
	first := tr.commit("first", "a@example.com")
	tr.writeFile("a.txt", "two\n")
	second := tr.commit("PROJ-7 second", "b@example.com")

	repo := tr.open()

	info, err := repo.Commit(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, second, info.Hash)
	assert.Equal(t, "b@example.com", info.Author.Email)
	assert.Equal(t, "PROJ-7 second", info.Message)
	assert.Equal(t, []gitlib.Hash{first}, info.Parents)
	assert.False(t, info.IsRoot())

	root, err := repo.Commit(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
}

func TestAncestors(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "1\n")
	c1 := tr.commit("c1", "a@example.com")
	tr.writeFile("a.txt", "2\n")
	c2 := tr.commit("c2", "a@example.com")
	tr.writeFile("a.txt", "3\n")
	c3 := tr.commit("c3", "a@example.com")

	repo := tr.open()

	got, err := repo.Ancestors(context.Background(), c2)
	require.NoError(t, err)

	hashes := make([]gitlib.Hash, 0, len(got))
	for _, c := range got {
		hashes = append(hashes, c.Hash)
	}

	assert.ElementsMatch(t, []gitlib.Hash{c1, c2}, hashes)
	assert.NotContains(t, hashes, c3)
}

func TestLogAll_IncludesOtherBranches(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "1\n")
	c1 := tr.commit("c1", "a@example.com")
	tr.writeFile("a.txt", "2\n")
	c2 := tr.commit("c2", "a@example.com")

	commit, err := tr.native.LookupCommit(c2.ToOid())
	require.NoError(t, err)

	branch, err := tr.native.CreateBranch("side", commit, false)
	require.NoError(t, err)
	branch.Free()
	commit.Free()

	// Rewind HEAD's branch so c2 is only reachable from "side".
	head, err := tr.native.Head()
	require.NoError(t, err)

	moved, err := head.SetTarget(c1.ToOid(), "rewind")
	require.NoError(t, err)
	moved.Free()
	head.Free()

	repo := tr.open()

	got, err := repo.LogAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, c2, got[0].Hash)
	assert.Equal(t, c1, got[1].Hash)
}

func TestDiffToParent_Hunks(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("A.java", fiveLines)
	root := tr.commit("root", "a@example.com")

	tr.writeFile("A.java", "l1\nl2\nCHANGED\nl4\nl5\n")
	modified := tr.commit("modify", "a@example.com")

	tr.writeFile("A.java", "l1\nnew1\nnew2\nl2\nCHANGED\nl4\nl5\n")
	inserted := tr.commit("insert", "a@example.com")

	tr.writeFile("A.java", "l1\nnew1\nnew2\nl2\nCHANGED\nl5\n")
	deleted := tr.commit("delete", "a@example.com")

	repo := tr.open()
	ctx := context.Background()

	_, err := repo.DiffToParent(ctx, root)
	require.ErrorIs(t, err, gitlib.ErrNoParent)

	tests := []struct {
		name   string
		commit gitlib.Hash
		want   gitlib.Hunk
	}{
		{"modify", modified, gitlib.Hunk{OldBegin: 2, OldEnd: 3, NewBegin: 2, NewEnd: 3}},
		{"insert", inserted, gitlib.Hunk{OldBegin: 1, OldEnd: 1, NewBegin: 1, NewEnd: 3}},
		{"delete", deleted, gitlib.Hunk{OldBegin: 5, OldEnd: 6, NewBegin: 5, NewEnd: 5}},
	}

	for _, tt := range tests {
		changes, diffErr := repo.DiffToParent(ctx, tt.commit)
		require.NoError(t, diffErr, tt.name)
		require.Len(t, changes, 1, tt.name)

		change := changes[0]
		assert.Equal(t, gitlib.Modify, change.Action, tt.name)
		assert.Equal(t, "A.java", change.OldPath, tt.name)
		assert.Equal(t, "A.java", change.NewPath, tt.name)
		assert.Equal(t, []gitlib.Hunk{tt.want}, change.Hunks, tt.name)
	}
}

func TestDiffToParent_AddDeleteRename(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("keep.txt", fiveLines)
	tr.writeFile("gone.txt", "bye\n")
	tr.commit("root", "a@example.com")

	tr.removeFile("gone.txt")
	tr.removeFile("keep.txt")
	tr.writeFile("moved/keep.txt", fiveLines)
	tr.writeFile("fresh.txt", "hi\nthere\n")
	second := tr.commit("shuffle", "a@example.com")

	repo := tr.open()

	changes, err := repo.DiffToParent(context.Background(), second)
	require.NoError(t, err)

	byAction := map[gitlib.ChangeAction]gitlib.FileChange{}
	for _, c := range changes {
		byAction[c.Action] = c
	}

	require.Contains(t, byAction, gitlib.Rename)
	assert.Equal(t, "keep.txt", byAction[gitlib.Rename].OldPath)
	assert.Equal(t, "moved/keep.txt", byAction[gitlib.Rename].NewPath)
	assert.Empty(t, byAction[gitlib.Rename].Hunks)

	require.Contains(t, byAction, gitlib.Insert)
	assert.Empty(t, byAction[gitlib.Insert].OldPath)
	assert.Equal(t, []gitlib.Hunk{{OldBegin: 0, OldEnd: 0, NewBegin: 0, NewEnd: 2}}, byAction[gitlib.Insert].Hunks)

	require.Contains(t, byAction, gitlib.Delete)
	assert.Equal(t, "gone.txt", byAction[gitlib.Delete].OldPath)
	assert.Empty(t, byAction[gitlib.Delete].NewPath)
}

func TestDiffToParent_WithoutRenameDetection(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("keep.txt", fiveLines)
	tr.commit("root", "a@example.com")

	tr.removeFile("keep.txt")
	tr.writeFile("moved.txt", fiveLines)
	second := tr.commit("move", "a@example.com")

	repo, err := gitlib.OpenRepository(tr.path, gitlib.WithRenameDetection(false))
	require.NoError(t, err)

	defer repo.Free()

	changes, err := repo.DiffToParent(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	for _, c := range changes {
		assert.NotEqual(t, gitlib.Rename, c.Action)
	}
}

func TestFileContentAndListFiles(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("src/main/A.java", "class A {}\n")
	tr.writeFile("README", "readme\n")
	c := tr.commit("root", "a@example.com")

	repo := tr.open()
	ctx := context.Background()

	content, err := repo.FileContent(ctx, c, "src/main/A.java")
	require.NoError(t, err)
	assert.Equal(t, "class A {}\n", string(content))

	_, err = repo.FileContent(ctx, c, "src/main/B.java")
	require.ErrorIs(t, err, gitlib.ErrFileNotFound)

	_, err = repo.FileContent(ctx, c, "src/main")
	require.ErrorIs(t, err, gitlib.ErrFileNotFound)

	files, err := repo.ListFiles(ctx, c)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"README", "src/main/A.java"}, files)
}

func TestResolveTag(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "1\n")
	c1 := tr.commit("c1", "a@example.com")
	tr.writeFile("a.txt", "2\n")
	c2 := tr.commit("c2", "a@example.com")

	tr.lightweightTag("v1.0.0", c1)
	tr.annotatedTag("release-2.0.0", c2)

	repo := tr.open()
	ctx := context.Background()

	got, err := repo.ResolveTag(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	got, err = repo.ResolveTag(ctx, "release-2.0.0")
	require.NoError(t, err)
	assert.Equal(t, c2, got)

	_, err = repo.ResolveTag(ctx, "3.0.0")
	require.ErrorIs(t, err, gitlib.ErrTagNotFound)

	tags, err := repo.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"release-2.0.0", "v1.0.0"}, tags)
}
