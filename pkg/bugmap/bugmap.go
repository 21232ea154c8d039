// Package bugmap maps each defect to the methods its fix commit changed.
package bugmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/faultline/pkg/callable"
	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

// Source is the repository view the mapper reads.
type Source interface {
	DiffToParent(ctx context.Context, hash gitlib.Hash) ([]gitlib.FileChange, error)
	FileContent(ctx context.Context, hash gitlib.Hash, path string) ([]byte, error)
}

// Parser extracts callable declarations from file content.
type Parser interface {
	Parse(ctx context.Context, content []byte) callable.ParseResult
}

// Index maps a defect key to the set of method keys its fix touched.
type Index map[string]map[string]struct{}

// Touched returns the sorted method keys touched by the defect.
func (idx Index) Touched(defectKey string) []string {
	keys := make([]string, 0, len(idx[defectKey]))
	for k := range idx[defectKey] {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// Stats summarises a mapping pass.
type Stats struct {
	Mapped        int
	WithoutFix    int
	RootFix       int
	DiffFailures  int
	FileFailures  int
	MethodsMarked int
}

// Mapper builds the defect to method index.
type Mapper struct {
	source Source
	parser Parser
	logger *slog.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger for skipped defects and files.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// New creates a Mapper.
func New(source Source, parser Parser, opts ...Option) *Mapper {
	m := &Mapper{source: source, parser: parser, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Map diffs every linked fix commit against its first parent and records
// the declarations, in the post-change file, that a hunk overlaps. Only
// in-place modifications of source files count. Defects without a fix
// commit, or whose fix is a root commit, contribute nothing.
func (m *Mapper) Map(ctx context.Context, defects []*defect.Defect) (Index, Stats, error) {
	idx := make(Index)

	var stats Stats

	for _, d := range defects {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		if !d.HasFix() {
			stats.WithoutFix++
			m.logger.DebugContext(ctx, "defect has no fix commit", "defect", d.Key)

			continue
		}

		changes, err := m.source.DiffToParent(ctx, d.FixCommit)
		if err != nil {
			if errors.Is(err, gitlib.ErrNoParent) {
				stats.RootFix++

				continue
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}

			stats.DiffFailures++
			m.logger.WarnContext(ctx, "fix commit diff failed",
				"defect", d.Key, "commit", d.FixCommit.Short(), "error", err)

			continue
		}

		touched := m.touched(ctx, d, changes, &stats)
		if len(touched) == 0 {
			continue
		}

		idx[d.Key] = touched
		stats.Mapped++
		stats.MethodsMarked += len(touched)
	}

	return idx, stats, nil
}

func (m *Mapper) touched(ctx context.Context, d *defect.Defect, changes []gitlib.FileChange, stats *Stats) map[string]struct{} {
	touched := make(map[string]struct{})

	for _, change := range changes {
		if change.Action != gitlib.Modify || !callable.IsSource(change.NewPath) || len(change.Hunks) == 0 {
			continue
		}

		decls, err := m.declarations(ctx, d.FixCommit, change.NewPath)
		if err != nil {
			stats.FileFailures++
			m.logger.WarnContext(ctx, "skipping fixed file",
				"defect", d.Key, "path", change.NewPath, "error", err)

			continue
		}

		for _, h := range change.Hunks {
			for _, decl := range decls {
				if decl.Overlaps(h.NewBegin, h.NewEnd) {
					touched[callable.Key(change.NewPath, decl.Signature)] = struct{}{}
				}
			}
		}
	}

	return touched
}

func (m *Mapper) declarations(ctx context.Context, commit gitlib.Hash, path string) ([]callable.Declaration, error) {
	content, err := m.source.FileContent(ctx, commit, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	res := m.parser.Parse(ctx, content)
	if !res.OK() {
		return nil, fmt.Errorf("parse %s (%s): %w", path, res.Reason, res.Err)
	}

	return res.Declarations, nil
}
