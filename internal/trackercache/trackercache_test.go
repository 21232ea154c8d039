package trackercache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/faultline/internal/trackercache"
	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

type countingSource struct {
	releases int
	defects  int
}

func (c *countingSource) Releases(context.Context) ([]release.Release, error) {
	c.releases++

	return release.AssignIndices([]release.Release{
		{Name: "1.0", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}), nil
}

func (c *countingSource) Defects(context.Context) ([]*defect.Defect, error) {
	c.defects++

	return []*defect.Defect{
		defect.New("P-1", time.Date(2020, 2, 1, 10, 0, 0, 0, time.UTC), []string{"1.0"}),
	}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func openStore(t *testing.T, c *clock) *trackercache.Store {
	t.Helper()

	store, err := trackercache.Open(filepath.Join(t.TempDir(), "cache.db"), time.Hour, trackercache.WithClock(c.now))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSource_CachesUntilExpiry(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	inner := &countingSource{}
	src := trackercache.Wrap(inner, openStore(t, c), "P", nil)
	ctx := context.Background()

	first, err := src.Releases(ctx)
	require.NoError(t, err)

	second, err := src.Releases(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.releases)
	assert.Equal(t, first, second)

	c.t = c.t.Add(2 * time.Hour)

	_, err = src.Releases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.releases)
}

func TestSource_DefectsComeBackUnknown(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	inner := &countingSource{}
	src := trackercache.Wrap(inner, openStore(t, c), "P", nil)
	ctx := context.Background()

	_, err := src.Defects(ctx)
	require.NoError(t, err)

	cached, err := src.Defects(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.defects)
	require.Len(t, cached, 1)
	assert.Equal(t, "P-1", cached[0].Key)
	assert.Equal(t, []string{"1.0"}, cached[0].AffectedVersions)
	assert.True(t, cached[0].Created.Equal(time.Date(2020, 2, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, release.Unknown, cached[0].Opening)
	assert.Equal(t, release.Unknown, cached[0].Introduction)
}

func TestStore_SeparateKeys(t *testing.T) {
	t.Parallel()

	store := openStore(t, &clock{t: time.Now()})

	require.NoError(t, store.Put("A/releases", []string{"a"}))
	require.NoError(t, store.Put("B/releases", []string{"b"}))

	var got []string

	hit, err := store.Get("A/releases", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a"}, got)

	hit, err = store.Get("C/releases", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStore_Persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := trackercache.Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.Put("k", map[string]int{"n": 42}))
	require.NoError(t, store.Close())

	reopened, err := trackercache.Open(path, 0)
	require.NoError(t, err)

	defer reopened.Close()

	var got map[string]int

	hit, err := reopened.Get("k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, got["n"])
}
