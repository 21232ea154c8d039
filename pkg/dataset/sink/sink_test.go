package sink_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
	"github.com/Sumatoshi-tech/faultline/pkg/dataset/sink"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

func sampleRows() []dataset.Row {
	return []dataset.Row{
		{
			Project: "BOOKKEEPER", MethodID: "id-1", MethodName: "src/A.java/a(int, String)", Release: "4.0.0",
			LOC: 12, Complexity: 3, Parameters: 2, NR: 4, NAuth: 2, Added: 10, Deleted: 4,
			MaxChurn: 8, AvgChurn: 3.5, Buggy: true,
		},
		{
			Project: "BOOKKEEPER", MethodID: "id-2", MethodName: "src/A.java/b()", Release: "4.0.0",
			LOC: 1, Complexity: 1,
		},
	}
}

func TestCSV_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	s := sink.NewCSV(&buf)
	require.NoError(t, s.WriteRelease(context.Background(), release.Release{Name: "4.0.0"}, sampleRows()))
	require.NoError(t, s.Close())

	want := "Project,MethodName,Release,LOC,CyclomaticComplexity,ParameterCount,Duplication," +
		"NR,NAuth,stmtAdded,stmtDeleted,maxChurn,avgChurn,IsBuggy\n" +
		"BOOKKEEPER,\"src/A.java/a(int, String)\",4.0.0,12,3,2,0,4,2,10,4,8,3.5,yes\n" +
		"BOOKKEEPER,src/A.java/b(),4.0.0,1,1,0,0,0,0,0,0,0,0,no\n"
	assert.Equal(t, want, buf.String())
}

func TestCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")

	s, err := sink.CreateCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
	assert.True(t, bytes.HasPrefix(data, []byte("Project,MethodName")))
}

func TestCSV_SingleHeaderAcrossReleases(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	s := sink.NewCSV(&buf)
	rows := sampleRows()
	require.NoError(t, s.WriteRelease(context.Background(), release.Release{Name: "1"}, rows[:1]))
	require.NoError(t, s.WriteRelease(context.Background(), release.Release{Name: "2"}, rows[1:]))
	require.NoError(t, s.Close())

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Project,")))
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestSQLite_WriteRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.db")
	ctx := context.Background()

	s, err := sink.OpenSQLite(path, "BOOKKEEPER")
	require.NoError(t, err)

	defer s.Close()

	rel := release.Release{Name: "4.0.0", Index: 1}
	require.NoError(t, s.WriteRelease(ctx, rel, sampleRows()))

	n, err := s.Count(ctx, "BOOKKEEPER", "4.0.0")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Rewriting a release replaces its rows.
	require.NoError(t, s.WriteRelease(ctx, rel, sampleRows()[:1]))

	n, err = s.Count(ctx, "BOOKKEEPER", "4.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A release that now yields no methods is cleared.
	require.NoError(t, s.WriteRelease(ctx, rel, nil))

	n, err = s.Count(ctx, "BOOKKEEPER", "4.0.0")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_ClearKeepsOtherProjects(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.db")
	ctx := context.Background()
	rel := release.Release{Name: "4.0.0", Index: 1}

	bk, err := sink.OpenSQLite(path, "BOOKKEEPER")
	require.NoError(t, err)
	require.NoError(t, bk.WriteRelease(ctx, rel, sampleRows()))
	require.NoError(t, bk.Close())

	other, err := sink.OpenSQLite(path, "ZOOKEEPER")
	require.NoError(t, err)

	defer other.Close()

	require.NoError(t, other.WriteRelease(ctx, rel, nil))

	n, err := other.Count(ctx, "BOOKKEEPER", "4.0.0")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	csvSink, err := sink.Open(sink.FormatCSV, filepath.Join(dir, "a.csv"), "ZK")
	require.NoError(t, err)
	require.NoError(t, csvSink.Close())

	dbSink, err := sink.Open(sink.FormatSQLite, filepath.Join(dir, "a.db"), "ZK")
	require.NoError(t, err)
	require.NoError(t, dbSink.Close())

	_, err = sink.Open("parquet", filepath.Join(dir, "a.parquet"), "ZK")
	require.ErrorIs(t, err, sink.ErrUnknownFormat)
}
