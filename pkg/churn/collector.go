package churn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/faultline/pkg/alg/lru"
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

// DefaultDiffCacheEntries is the number of commit diffs kept in memory.
const DefaultDiffCacheEntries = 4096

// History is the repository view the collector reads.
type History interface {
	Ancestors(ctx context.Context, target gitlib.Hash) ([]gitlib.CommitInfo, error)
	DiffToParent(ctx context.Context, hash gitlib.Hash) ([]gitlib.FileChange, error)
}

// Collector computes change statistics. Diffs are memoized across targets, so
// consecutive releases sharing most of their history diff each commit once.
type Collector struct {
	history History
	diffs   *lru.Cache[gitlib.Hash, []gitlib.FileChange]
	logger  *slog.Logger
}

// Option configures a Collector.
type Option func(*collectorConfig)

type collectorConfig struct {
	cacheEntries int
	logger       *slog.Logger
}

// WithDiffCacheEntries bounds the diff cache.
func WithDiffCacheEntries(n int) Option {
	return func(c *collectorConfig) {
		if n > 0 {
			c.cacheEntries = n
		}
	}
}

// WithLogger sets the logger for per-commit diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *collectorConfig) {
		c.logger = logger
	}
}

// NewCollector creates a collector reading from history.
func NewCollector(history History, opts ...Option) *Collector {
	cfg := collectorConfig{cacheEntries: DefaultDiffCacheEntries}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &Collector{
		history: history,
		diffs:   lru.New[gitlib.Hash, []gitlib.FileChange](cfg.cacheEntries),
		logger:  cfg.logger,
	}
}

// CacheStats returns diff cache statistics.
func (c *Collector) CacheStats() lru.Stats {
	return c.diffs.Stats()
}

// Prepare walks every ancestor of target once and indexes the hunks of each
// non-root commit by the paths they touch. Ancestry and diff failures are
// kept in the index and reported by every Collect call. Only context
// cancellation is returned as an error.
func (c *Collector) Prepare(ctx context.Context, target gitlib.Hash) (*Index, error) {
	idx := &Index{target: target, touches: make(map[string][]touch)}

	commits, err := c.history.Ancestors(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		idx.failure = failed(ReasonAncestry, fmt.Errorf("ancestors of %s: %w", target.Short(), err))

		return idx, nil
	}

	for _, commit := range commits {
		if commit.IsRoot() {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changes, err := c.diff(ctx, commit.Hash)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}

			c.logger.DebugContext(ctx, "diff failed", "commit", commit.Hash.Short(), "error", err)
			idx.failure = failed(ReasonDiff, fmt.Errorf("diff %s: %w", commit.Hash.Short(), err))

			return idx, nil
		}

		idx.add(authorOf(commit), changes)
	}

	idx.commits = len(commits)

	return idx, nil
}

// Collect computes the statistics of one method. It prepares a fresh index
// and is meant for single lookups; use Prepare when many methods share a target.
func (c *Collector) Collect(ctx context.Context, path string, start, end int, target gitlib.Hash) Result {
	idx, err := c.Prepare(ctx, target)
	if err != nil {
		return failed(ReasonAncestry, err)
	}

	return idx.Collect(path, start, end)
}

func (c *Collector) diff(ctx context.Context, hash gitlib.Hash) ([]gitlib.FileChange, error) {
	if changes, ok := c.diffs.Get(hash); ok {
		return changes, nil
	}

	changes, err := c.history.DiffToParent(ctx, hash)
	if err != nil {
		return nil, err
	}

	c.diffs.Put(hash, changes)

	return changes, nil
}

func authorOf(commit gitlib.CommitInfo) string {
	if commit.Author.Email != "" {
		return commit.Author.Email
	}

	return commit.Author.Name
}
