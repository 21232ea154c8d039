// Package framework runs the mining pipeline end to end: tracker fetch,
// repository acquisition, fix-commit discovery, release indices, proportion
// estimation, bug to method mapping and dataset assembly.
package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/faultline/pkg/bugmap"
	"github.com/Sumatoshi-tech/faultline/pkg/callable"
	"github.com/Sumatoshi-tech/faultline/pkg/churn"
	"github.com/Sumatoshi-tech/faultline/pkg/config"
	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
	"github.com/Sumatoshi-tech/faultline/pkg/dataset/sink"
	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
	"github.com/Sumatoshi-tech/faultline/pkg/proportion"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
	"github.com/Sumatoshi-tech/faultline/pkg/tracker"
)

// Runner mines one project into a dataset sink.
type Runner struct {
	cfg config.Config

	tracker tracker.Source
	open    RepositoryOpener
	sink    dataset.Sink

	logger   *slog.Logger
	tracer   trace.Tracer
	observer dataset.Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithTracker replaces the tracker built from configuration.
func WithTracker(src tracker.Source) Option {
	return func(r *Runner) {
		r.tracker = src
	}
}

// WithRepositoryOpener replaces OpenGit.
func WithRepositoryOpener(open RepositoryOpener) Option {
	return func(r *Runner) {
		r.open = open
	}
}

// WithSink replaces the sink built from output configuration. The runner
// still closes it.
func WithSink(s dataset.Sink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer sets the tracer for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// WithObserver sets the metrics observer passed to the assembler.
func WithObserver(o dataset.Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// NewRunner creates a Runner for a validated configuration.
func NewRunner(cfg config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		open:   OpenGit,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("faultline"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// fetched is the tracker state of a run.
type fetched struct {
	ordered []release.Release
	defects []*defect.Defect
}

// Run executes the whole pipeline and returns the run report.
func (r *Runner) Run(ctx context.Context) (report dataset.Report, err error) {
	project := r.cfg.Project.Key

	ctx, span := r.tracer.Start(ctx, "faultline.run", trace.WithAttributes(attribute.String("project", project)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	state, err := r.fetch(ctx)
	if err != nil {
		return dataset.Report{Project: project}, err
	}

	repo, free, err := r.openRepository(ctx)
	if err != nil {
		return dataset.Report{Project: project}, err
	}
	defer free()

	labels, summary, err := r.label(ctx, repo, state)
	if err != nil {
		return dataset.Report{Project: project}, err
	}

	out, err := r.openSink()
	if err != nil {
		return dataset.Report{Project: project}, err
	}

	report, err = r.assemble(ctx, repo, state.ordered, labels, out)
	err = closeWith(err, out.Close)

	summary.apply(&report)

	r.logger.InfoContext(ctx, "mining finished",
		"project", project,
		"releases_analysed", report.Analysed,
		"releases_skipped", len(report.Skipped),
		"rows", report.Rows,
		"buggy_rows", report.BuggyRows,
	)

	return report, err
}

func (r *Runner) stage(ctx context.Context, name string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "faultline."+name)
}

func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

func (r *Runner) trackerSource() (tracker.Source, func() error, error) {
	if r.tracker != nil {
		return r.tracker, func() error { return nil }, nil
	}

	return OpenTracker(r.cfg, r.logger)
}

func (r *Runner) fetch(ctx context.Context) (state fetched, err error) {
	ctx, span := r.stage(ctx, "tracker")
	defer func() { endStage(span, err) }()

	src, closeFn, err := r.trackerSource()
	if err != nil {
		return fetched{}, err
	}

	defer func() { err = closeWith(err, closeFn) }()

	releases, err := src.Releases(ctx)
	if err != nil {
		return fetched{}, fmt.Errorf("fetch releases: %w", err)
	}

	defects, err := src.Defects(ctx)
	if err != nil {
		return fetched{}, fmt.Errorf("fetch defects: %w", err)
	}

	state = fetched{ordered: release.AssignIndices(releases), defects: defects}

	span.SetAttributes(
		attribute.Int("releases", len(state.ordered)),
		attribute.Int("defects", len(state.defects)),
	)
	r.logger.InfoContext(ctx, "tracker fetched", "releases", len(state.ordered), "defects", len(state.defects))

	return state, nil
}

func (r *Runner) openRepository(ctx context.Context) (repo Repository, free func(), err error) {
	ctx, span := r.stage(ctx, "repository")
	defer func() { endStage(span, err) }()

	repo, free, err = r.open(ctx, r.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire repository: %w", err)
	}

	return repo, free, nil
}

// defectSummary carries the defect side of the report.
type defectSummary struct {
	defects     int
	linked      int
	unlinked    int
	mapped      int
	estimated   int
	coefficient float64
}

func (s defectSummary) apply(report *dataset.Report) {
	report.Defects = s.defects
	report.DefectsLinked = s.linked
	report.DefectsUnlinked = s.unlinked
	report.DefectsMapped = s.mapped
	report.DefectsEstimated = s.estimated
	report.Coefficient = s.coefficient
}

// label links defects to fix commits, derives their release indices,
// estimates missing introductions and maps fixes to methods.
func (r *Runner) label(ctx context.Context, repo Repository, state fetched) (dataset.Labels, defectSummary, error) {
	summary := defectSummary{defects: len(state.defects)}

	linkCtx, span := r.stage(ctx, "link")

	linked, err := defect.Link(linkCtx, repo, state.defects)

	endStage(span, err)

	if err != nil {
		return dataset.Labels{}, summary, err
	}

	summary.linked = linked.Linked
	summary.unlinked = linked.Unlinked

	for _, d := range state.defects {
		if !d.HasFix() {
			r.logger.DebugContext(ctx, "defect without fix commit", "defect", d.Key)
		}
	}

	defect.AssignIndices(state.defects, state.ordered)

	summary.coefficient, summary.estimated = proportion.Estimator{
		Fallback: r.cfg.Analysis.DefaultProportion,
	}.Apply(state.defects)

	r.logger.InfoContext(ctx, "defects linked",
		"linked", summary.linked,
		"unlinked", summary.unlinked,
		"estimated", summary.estimated,
		"coefficient", summary.coefficient,
	)

	parser, err := r.parser()
	if err != nil {
		return dataset.Labels{}, summary, err
	}

	mapCtx, span := r.stage(ctx, "bugmap")

	index, stats, err := bugmap.New(repo, parser, bugmap.WithLogger(r.logger)).Map(mapCtx, state.defects)

	endStage(span, err)

	if err != nil {
		return dataset.Labels{}, summary, fmt.Errorf("map defects to methods: %w", err)
	}

	summary.mapped = stats.Mapped

	labels := dataset.NewLabels(state.defects, index)

	r.logger.InfoContext(ctx, "defects mapped to methods",
		"mapped", stats.Mapped, "methods", labels.Methods(), "diff_failures", stats.DiffFailures)

	return labels, summary, nil
}

func (r *Runner) parser() (*callable.Parser, error) {
	limit, err := r.cfg.Analysis.MaxFileBytes()
	if err != nil {
		return nil, err
	}

	return callable.NewParser(callable.WithMaxBytes(limit)), nil
}

func (r *Runner) openSink() (dataset.Sink, error) {
	if r.sink != nil {
		return r.sink, nil
	}

	key := r.cfg.Project.Key

	out, err := sink.Open(r.cfg.Output.Format, r.cfg.Output.ResolvedPath(key), key)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}

	return out, nil
}

func (r *Runner) assemble(
	ctx context.Context, repo Repository, ordered []release.Release, labels dataset.Labels, out dataset.Sink,
) (report dataset.Report, err error) {
	ctx, span := r.stage(ctx, "dataset")
	defer func() { endStage(span, err) }()

	parser, err := r.parser()
	if err != nil {
		return dataset.Report{Project: r.cfg.Project.Key}, err
	}

	collector := churn.NewCollector(repo,
		churn.WithDiffCacheEntries(r.cfg.Analysis.DiffCacheEntries),
		churn.WithLogger(r.logger),
	)

	opts := []dataset.Option{
		dataset.WithReleaseFraction(r.cfg.Analysis.ReleaseFraction),
		dataset.WithTagPrefixes(r.cfg.Project.TagPrefixes),
		dataset.WithExcludePathSubstrings(r.cfg.Analysis.ExcludePathSubstrings),
		dataset.WithWorkers(r.cfg.Analysis.Workers),
		dataset.WithCollector(collector),
		dataset.WithLogger(r.logger),
		dataset.WithTracer(r.tracer),
	}

	if r.observer != nil {
		opts = append(opts, dataset.WithObserver(r.observer))
	}

	report, err = dataset.NewAssembler(repo, parser, opts...).Assemble(ctx, r.cfg.Project.Key, ordered, labels, out)

	cache := collector.CacheStats()
	r.logger.DebugContext(ctx, "diff cache",
		"hits", cache.Hits, "misses", cache.Misses, "evictions", cache.Evictions, "hit_rate", cache.HitRate())

	if err != nil {
		return report, fmt.Errorf("assemble dataset: %w", err)
	}

	return report, nil
}

// ReleaseInfo is one tracker release with the tag it resolves to, if any.
type ReleaseInfo struct {
	release.Release

	Tag      string
	Commit   gitlib.Hash
	Selected bool
}

// Releases lists the ordered tracker releases with their resolved tags,
// marking the leading share the miner would analyse.
func (r *Runner) Releases(ctx context.Context) ([]ReleaseInfo, error) {
	state, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	repo, free, err := r.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	defer free()

	prefixes := r.cfg.Project.TagPrefixes
	if len(prefixes) == 0 {
		prefixes = dataset.DefaultTagPrefixes(r.cfg.Project.Key)
	}

	selected := len(release.Leading(state.ordered, r.cfg.Analysis.ReleaseFraction))
	infos := make([]ReleaseInfo, 0, len(state.ordered))

	for i, rel := range state.ordered {
		info := ReleaseInfo{Release: rel, Selected: i < selected}

		hash, tag, resolveErr := dataset.ResolveRelease(ctx, repo, rel.Name, prefixes)

		switch {
		case resolveErr == nil:
			info.Tag = tag
			info.Commit = hash
		case !errors.Is(resolveErr, gitlib.ErrTagNotFound):
			return nil, fmt.Errorf("resolve release %s: %w", rel.Name, resolveErr)
		}

		infos = append(infos, info)
	}

	return infos, nil
}
