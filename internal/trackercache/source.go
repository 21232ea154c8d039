package trackercache

import (
	"context"
	"log/slog"

	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
	"github.com/Sumatoshi-tech/faultline/pkg/tracker"
)

// Source serves releases and defects from the store, falling back to the
// wrapped source for missing or expired entries.
type Source struct {
	inner   tracker.Source
	store   *Store
	project string
	logger  *slog.Logger
}

// Wrap decorates inner with the store, keyed by project.
func Wrap(inner tracker.Source, store *Store, project string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{inner: inner, store: store, project: project, logger: logger}
}

func (s *Source) key(kind string) string {
	return s.project + "/" + kind
}

// Releases implements tracker.Source.
func (s *Source) Releases(ctx context.Context) ([]release.Release, error) {
	var cached []release.Release

	if s.lookup(ctx, "releases", &cached) {
		return cached, nil
	}

	releases, err := s.inner.Releases(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(s.key("releases"), releases); err != nil {
		s.logger.WarnContext(ctx, "tracker cache write failed", "error", err)
	}

	return releases, nil
}

// Defects implements tracker.Source. Cached defects come back with unknown
// indices, like fresh ones.
func (s *Source) Defects(ctx context.Context) ([]*defect.Defect, error) {
	var cached []*defect.Defect

	if s.lookup(ctx, "defects", &cached) {
		out := make([]*defect.Defect, len(cached))
		for i, d := range cached {
			out[i] = defect.New(d.Key, d.Created, d.AffectedVersions)
		}

		return out, nil
	}

	defects, err := s.inner.Defects(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(s.key("defects"), defects); err != nil {
		s.logger.WarnContext(ctx, "tracker cache write failed", "error", err)
	}

	return defects, nil
}

func (s *Source) lookup(ctx context.Context, kind string, out any) bool {
	hit, err := s.store.Get(s.key(kind), out)
	if err != nil {
		s.logger.WarnContext(ctx, "tracker cache read failed", "kind", kind, "error", err)

		return false
	}

	s.logger.DebugContext(ctx, "tracker cache lookup", "kind", kind, "hit", hit)

	return hit
}
