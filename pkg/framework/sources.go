package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Sumatoshi-tech/faultline/internal/trackercache"
	"github.com/Sumatoshi-tech/faultline/pkg/bugmap"
	"github.com/Sumatoshi-tech/faultline/pkg/config"
	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
	"github.com/Sumatoshi-tech/faultline/pkg/tracker"
	"github.com/Sumatoshi-tech/faultline/pkg/tracker/filesource"
	"github.com/Sumatoshi-tech/faultline/pkg/tracker/jira"
)

// Repository is everything the pipeline reads from version control.
type Repository interface {
	dataset.Repository
	defect.CommitLog
	bugmap.Source
}

// RepositoryOpener acquires the project repository. The returned release
// function frees it.
type RepositoryOpener func(ctx context.Context, cfg config.Config) (Repository, func(), error)

// OpenGit clones or opens <workdir>/<key> through libgit2.
func OpenGit(ctx context.Context, cfg config.Config) (Repository, func(), error) {
	dir := filepath.Join(cfg.Project.Workdir, cfg.Project.Key)

	repo, err := gitlib.CloneOrOpen(ctx, cfg.Project.RepositoryURL, dir,
		gitlib.WithRenameDetection(cfg.Analysis.DetectRenames))
	if err != nil {
		return nil, nil, err
	}

	return repo, repo.Free, nil
}

// OpenTracker builds the configured tracker source, wrapped in the on-disk
// cache when tracker.cache_path is set. The returned close function releases
// the cache.
func OpenTracker(cfg config.Config, logger *slog.Logger) (tracker.Source, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		src tracker.Source
		err error
	)

	switch cfg.Tracker.Kind {
	case config.TrackerJira:
		src, err = jira.New(jira.Config{
			BaseURL:           cfg.Tracker.BaseURL,
			Project:           cfg.Project.Key,
			User:              cfg.Tracker.User,
			Token:             cfg.Tracker.Token,
			PageSize:          cfg.Tracker.PageSize,
			RequestsPerSecond: cfg.Tracker.RequestsPerSecond,
			Timeout:           cfg.Tracker.Timeout,
		}, jira.WithLogger(logger))
	case config.TrackerFile:
		src, err = filesource.Load(cfg.Tracker.File)
	default:
		err = fmt.Errorf("%w: %q", config.ErrInvalidTracker, cfg.Tracker.Kind)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("open tracker: %w", err)
	}

	if cfg.Tracker.CachePath == "" {
		return src, func() error { return nil }, nil
	}

	store, err := trackercache.Open(cfg.Tracker.CachePath, cfg.Tracker.CacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("open tracker cache: %w", err)
	}

	return trackercache.Wrap(src, store, cfg.Project.Key, logger), store.Close, nil
}

func closeWith(err error, closeFn func() error) error {
	if closeErr := closeFn(); closeErr != nil {
		return errors.Join(err, closeErr)
	}

	return err
}
