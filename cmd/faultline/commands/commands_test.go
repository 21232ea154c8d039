package commands_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/faultline/cmd/faultline/commands"
	"github.com/Sumatoshi-tech/faultline/pkg/config"
	"github.com/Sumatoshi-tech/faultline/pkg/dataset/sink"
	"github.com/Sumatoshi-tech/faultline/pkg/framework"
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

// Commands install global OpenTelemetry providers, so these tests run
// sequentially.

const sourceA = `package p;

public class A {
    void a() {
        x();
    }

    int b(int v) {
        return v;
    }
}
`

const trackerDocument = `
releases:
  - name: "1.0"
    date: "2020-01-01"
  - name: "2.0"
    date: "2020-06-01"
  - name: "3.0"
    date: "2021-01-01"
defects:
  - key: PROJ-1
    created: "2020-02-01"
    affected_versions: ["1.0"]
`

func fixtureRepo() *gitlib.MemoryRepo {
	files := map[string]string{"src/A.java": sourceA}

	repo := gitlib.NewMemoryRepo()
	root := repo.Add(gitlib.MemoryCommit{
		Author: gitlib.Signature{Email: "alice@example.com", When: time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC)},
		Files:  files,
	})
	fix := repo.Add(gitlib.MemoryCommit{
		Author:  gitlib.Signature{Email: "bob@example.com", When: time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)},
		Message: "PROJ-1 guard a()",
		Parents: []gitlib.Hash{root},
		Files:   files,
		Changes: []gitlib.FileChange{{
			OldPath: "src/A.java",
			NewPath: "src/A.java",
			Action:  gitlib.Modify,
			Hunks:   []gitlib.Hunk{{OldBegin: 4, OldEnd: 5, NewBegin: 4, NewEnd: 5}},
		}},
	})

	repo.Tag("v1.0", root)
	repo.Tag("proj-2.0", fix)

	return repo
}

type harness struct {
	dir    string
	config string
}

func newHarness(t *testing.T, extra string) harness {
	t.Helper()

	dir := t.TempDir()
	trackerFile := filepath.Join(dir, "tracker.yaml")
	require.NoError(t, os.WriteFile(trackerFile, []byte(trackerDocument), 0o600))

	cfgFile := filepath.Join(dir, "faultline.yaml")
	content := fmt.Sprintf(`
tracker:
  kind: file
  file: %q
analysis:
  release_fraction: 1
log:
  level: error
%s`, trackerFile, extra)
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))

	return harness{dir: dir, config: cfgFile}
}

func (h harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	opts := &commands.GlobalOptions{}
	commands.SetOpener(opts, func(context.Context, config.Config) (framework.Repository, func(), error) {
		return fixtureRepo(), func() {}, nil
	})

	root := &cobra.Command{Use: "faultline", SilenceUsage: true, SilenceErrors: true}
	opts.Bind(root)
	root.AddCommand(commands.NewMineCommand(opts), commands.NewReleasesCommand(opts), commands.NewVersionCommand())

	var out, errOut bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", h.config, "--no-color"}, args...))

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func TestMine_YAMLSummary(t *testing.T) {
	h := newHarness(t, "")
	outPath := filepath.Join(h.dir, "PROJ.csv")

	out, err := h.run(t, "mine", "--project", "PROJ", "--out", outPath, "--summary", "yaml")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))

	assert.Equal(t, "PROJ", report["project"])
	assert.Equal(t, 2, report["analysed"])
	assert.Equal(t, 4, report["rows"])
	assert.Equal(t, 1, report["buggy_rows"])
	assert.Equal(t, 1, report["defects_linked"])

	_, err = os.Stat(outPath)
	require.NoError(t, err)
}

func TestMine_TableSummary(t *testing.T) {
	h := newHarness(t, "")
	outPath := filepath.Join(h.dir, "PROJ.csv")

	out, err := h.run(t, "mine", "--project", "PROJ", "--out", outPath)
	require.NoError(t, err)

	assert.Contains(t, out, "PROJ: 4 rows written to "+outPath)
	assert.Contains(t, out, "Buggy rows")
	assert.Contains(t, out, "1 (3.0)")
}

func TestMine_SQLite(t *testing.T) {
	h := newHarness(t, "")
	outPath := filepath.Join(h.dir, "PROJ.db")

	_, err := h.run(t, "mine", "--project", "PROJ", "--format", "sqlite", "--out", outPath, "--quiet")
	require.NoError(t, err)

	db, err := sink.OpenSQLite(outPath, "PROJ")
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, db.Close()) })

	n, err := db.Count(context.Background(), "PROJ", "2.0")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMine_Errors(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.run(t, "mine", "--project", "PROJ", "--summary", "html")
	require.ErrorIs(t, err, commands.ErrUnknownSummary)

	_, err = h.run(t, "mine")
	require.ErrorIs(t, err, config.ErrMissingProject)

	_, err = h.run(t, "mine", "--project", "PROJ", "--format", "parquet")
	require.ErrorIs(t, err, config.ErrInvalidFormat)
}

func TestMine_DiagnosticsServer(t *testing.T) {
	h := newHarness(t, "telemetry:\n  metrics_addr: \"127.0.0.1:0\"\n")

	_, err := h.run(t, "mine", "--project", "PROJ", "--out", filepath.Join(h.dir, "PROJ.csv"), "-q")
	require.NoError(t, err)
}

func TestReleases_Table(t *testing.T) {
	h := newHarness(t, "")

	out, err := h.run(t, "releases", "--project", "PROJ")
	require.NoError(t, err)

	assert.Contains(t, out, "v1.0")
	assert.Contains(t, out, "proj-2.0")
	assert.Contains(t, out, "2020-06-01")
	footer := strings.ToLower(out)
	assert.Contains(t, footer, "3 releases")
	assert.Contains(t, footer, "2 tagged")
	assert.Contains(t, footer, "3 selected")
}

func TestVersion(t *testing.T) {
	h := newHarness(t, "")

	out, err := h.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "faultline ")

	out, err = h.run(t, "version", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "version:")
}
