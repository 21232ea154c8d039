package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/faultline/pkg/callable"
	"github.com/Sumatoshi-tech/faultline/pkg/churn"
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
	"github.com/Sumatoshi-tech/faultline/pkg/methodtrack"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

// DefaultReleaseFraction is the leading share of releases analysed.
const DefaultReleaseFraction = 0.34

// DefaultExcludePathSubstrings are the path fragments of files left out.
var DefaultExcludePathSubstrings = []string{"test"}

// Repository is the repository view the assembler reads.
type Repository interface {
	TagResolver
	churn.History
	ListFiles(ctx context.Context, hash gitlib.Hash) ([]string, error)
	FileContent(ctx context.Context, hash gitlib.Hash, path string) ([]byte, error)
}

// Parser extracts callable declarations from file content.
type Parser interface {
	Parse(ctx context.Context, content []byte) callable.ParseResult
}

// Assembler produces dataset rows release by release.
type Assembler struct {
	repo      Repository
	parser    Parser
	tracker   *methodtrack.Tracker
	collector *churn.Collector

	fraction float64
	prefixes []string
	exclude  []string
	workers  int

	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithReleaseFraction sets the leading share of releases to analyse.
func WithReleaseFraction(f float64) Option {
	return func(a *Assembler) {
		a.fraction = f
	}
}

// WithTagPrefixes sets the project-specific tag prefixes.
func WithTagPrefixes(prefixes []string) Option {
	return func(a *Assembler) {
		a.prefixes = prefixes
	}
}

// WithExcludePathSubstrings sets the case-insensitive path fragments of
// files to leave out.
func WithExcludePathSubstrings(subs []string) Option {
	return func(a *Assembler) {
		a.exclude = subs
	}
}

// WithWorkers bounds per-release parallelism. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithCollector replaces the default change-history collector.
func WithCollector(c *churn.Collector) Option {
	return func(a *Assembler) {
		a.collector = c
	}
}

// WithTracker replaces the default method tracker.
func WithTracker(t *methodtrack.Tracker) Option {
	return func(a *Assembler) {
		a.tracker = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(a *Assembler) {
		a.observer = o
	}
}

// WithTracer sets the tracer for per-release spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Assembler) {
		a.tracer = t
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(repo Repository, parser Parser, opts ...Option) *Assembler {
	a := &Assembler{
		repo:     repo,
		parser:   parser,
		tracker:  methodtrack.New(),
		fraction: DefaultReleaseFraction,
		exclude:  DefaultExcludePathSubstrings,
		workers:  runtime.GOMAXPROCS(0),
		logger:   slog.Default(),
		observer: nopObserver{},
		tracer:   noop.NewTracerProvider().Tracer("faultline"),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.collector == nil {
		a.collector = churn.NewCollector(repo, churn.WithLogger(a.logger))
	}

	return a
}

// Assemble analyses the leading share of ordered releases and writes one
// batch of rows per analysed release to sink. Releases without a resolvable
// tag are skipped. Method identities carry over from the last analysed release.
func (a *Assembler) Assemble(ctx context.Context, project string, ordered []release.Release, labels Labels, sink Sink) (Report, error) {
	selected := release.Leading(ordered, a.fraction)
	report := Report{Project: project, Releases: len(ordered), Selected: len(selected)}

	prefixes := a.prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultTagPrefixes(project)
	}

	var snapshot methodtrack.Snapshot

	for _, rel := range selected {
		commit, tag, err := ResolveRelease(ctx, a.repo, rel.Name, prefixes)
		if errors.Is(err, gitlib.ErrTagNotFound) {
			a.logger.WarnContext(ctx, "skipping release without matching tag", "release", rel.Name)
			a.observer.ReleaseSkipped(ctx, rel.Name)
			report.Skipped = append(report.Skipped, rel.Name)

			continue
		}

		if err != nil {
			return report, fmt.Errorf("resolve release %s: %w", rel.Name, err)
		}

		next, stats, err := a.release(ctx, project, rel, tag, commit, snapshot, labels, sink)
		if err != nil {
			return report, err
		}

		snapshot = next
		report.Analysed++
		report.Rows += stats.rows
		report.BuggyRows += stats.buggy
		report.ParseFailures += stats.parseFailures
		report.HistoryFailures += stats.historyFailures
	}

	return report, nil
}

type releaseStats struct {
	rows            int
	buggy           int
	parseFailures   int
	historyFailures int
}

func (a *Assembler) release(
	ctx context.Context,
	project string,
	rel release.Release,
	tag string,
	commit gitlib.Hash,
	prev methodtrack.Snapshot,
	labels Labels,
	sink Sink,
) (methodtrack.Snapshot, releaseStats, error) {
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, "faultline.release", trace.WithAttributes(
		attribute.String("release.name", rel.Name),
		attribute.Int("release.index", rel.Index),
		attribute.String("release.tag", tag),
		attribute.String("release.commit", commit.String()),
	))
	defer span.End()

	a.logger.InfoContext(ctx, "analysing release", "release", rel.Name, "tag", tag, "commit", commit.Short())

	var stats releaseStats

	located, parseFailures, err := a.declarations(ctx, commit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return prev, stats, err
	}

	stats.parseFailures = parseFailures

	methods, next := a.tracker.Track(prev, located)

	history, err := a.collector.Prepare(ctx, commit)
	if err != nil {
		return prev, stats, fmt.Errorf("history of %s: %w", rel.Name, err)
	}

	if history.Err() != nil {
		a.logger.WarnContext(ctx, "history unavailable, using zero change features",
			"release", rel.Name, "error", history.Err())
	} else {
		a.logger.DebugContext(ctx, "history indexed",
			"release", rel.Name, "target", history.Target().Short(), "commits", history.Commits())
	}

	rows, historyFailures, err := a.rows(ctx, project, rel, methods, history, labels)
	if err != nil {
		return prev, stats, err
	}

	stats.historyFailures = historyFailures
	stats.rows = len(rows)

	for _, r := range rows {
		if r.Buggy {
			stats.buggy++
		}
	}

	if err := sink.WriteRelease(ctx, rel, rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return prev, stats, fmt.Errorf("write release %s: %w", rel.Name, err)
	}

	span.SetAttributes(
		attribute.Int("release.rows", stats.rows),
		attribute.Int("release.buggy", stats.buggy),
	)
	a.observer.ReleaseAnalysed(ctx, rel.Name, stats.rows, stats.buggy, time.Since(start))

	return next, stats, nil
}

// declarations parses every source file at commit. A file that cannot be
// read or parsed contributes no declarations.
func (a *Assembler) declarations(ctx context.Context, commit gitlib.Hash) ([]methodtrack.Located, int, error) {
	files, err := a.repo.ListFiles(ctx, commit)
	if err != nil {
		return nil, 0, fmt.Errorf("list files at %s: %w", commit.Short(), err)
	}

	files = slices.DeleteFunc(files, func(path string) bool {
		return !callable.IsSource(path) || a.excluded(path)
	})

	perFile := make([][]methodtrack.Located, len(files))

	var failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, path := range files {
		g.Go(func() error {
			res := a.parse(gctx, commit, path)
			if err := gctx.Err(); err != nil {
				return err
			}

			if !res.OK() {
				failures.Add(1)
				a.logger.WarnContext(gctx, "skipping unparseable file",
					"path", path, "reason", string(res.Reason), "error", res.Err)
				a.observer.ParseFailure(gctx, path, string(res.Reason))

				return nil
			}

			located := make([]methodtrack.Located, 0, len(res.Declarations))
			for _, d := range res.Declarations {
				located = append(located, methodtrack.Located{Path: path, Declaration: d})
			}

			perFile[i] = located

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var out []methodtrack.Located
	for _, located := range perFile {
		out = append(out, located...)
	}

	return out, int(failures.Load()), nil
}

func (a *Assembler) parse(ctx context.Context, commit gitlib.Hash, path string) callable.ParseResult {
	content, err := a.repo.FileContent(ctx, commit, path)
	if err != nil {
		return callable.Failed(callable.ReasonUnreadable, err)
	}

	return a.parser.Parse(ctx, content)
}

func (a *Assembler) excluded(path string) bool {
	lower := strings.ToLower(path)

	for _, sub := range a.exclude {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}

	return false
}

// rows computes the features and label of every method. Methods whose
// history failed get zero change features.
func (a *Assembler) rows(
	ctx context.Context,
	project string,
	rel release.Release,
	methods []methodtrack.Method,
	history *churn.Index,
	labels Labels,
) ([]Row, int, error) {
	rows := make([]Row, len(methods))

	var failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, m := range methods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := history.Collect(m.Path, m.StartLine, m.EndLine)
			if !res.OK() {
				failures.Add(1)
				a.observer.HistoryFailure(gctx, string(res.Reason))
				a.logger.DebugContext(gctx, "method history failed",
					"method", m.Name(), "reason", string(res.Reason), "error", res.Err)
			}

			rows[i] = Row{
				Project:     project,
				MethodID:    m.ID,
				MethodName:  m.Name(),
				Release:     rel.Name,
				LOC:         m.LOC(),
				Complexity:  m.Complexity,
				Parameters:  m.Parameters,
				Duplication: Duplication,
				NR:          res.Revisions,
				NAuth:       res.Authors,
				Added:       res.Added,
				Deleted:     res.Deleted,
				MaxChurn:    res.MaxChurn,
				AvgChurn:    res.AvgChurn(),
				Buggy:       labels.Buggy(m.Key(), rel.Index),
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return rows, int(failures.Load()), nil
}
