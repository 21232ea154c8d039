package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReleasesSkipped = "faultline.releases.skipped"
	metricMethodsEmitted  = "faultline.methods.emitted"
	metricMethodsBuggy    = "faultline.methods.buggy"
	metricParseFailures   = "faultline.parse.failures"
	metricHistoryFailures = "faultline.history.failures"
	metricReleaseDuration = "faultline.release.duration"

	attrRelease = "release"
	attrReason  = "reason"
)

// durationBucketBoundaries are histogram bounds in seconds, from a small
// release to one of a large project with a cold diff cache.
var durationBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}

// PipelineMetrics records mining progress. A nil *PipelineMetrics is a valid
// no-op recorder.
type PipelineMetrics struct {
	releasesSkipped metric.Int64Counter
	methodsEmitted  metric.Int64Counter
	methodsBuggy    metric.Int64Counter
	parseFailures   metric.Int64Counter
	historyFailures metric.Int64Counter
	releaseDuration metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on mt.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		releasesSkipped: b.counter(metricReleasesSkipped, "Releases skipped because no tag resolved", "{release}"),
		methodsEmitted:  b.counter(metricMethodsEmitted, "Method rows written to the sink", "{method}"),
		methodsBuggy:    b.counter(metricMethodsBuggy, "Method rows labelled buggy", "{method}"),
		parseFailures:   b.counter(metricParseFailures, "Source files that failed to parse", "{file}"),
		historyFailures: b.counter(metricHistoryFailures, "Methods whose change history failed", "{method}"),
		releaseDuration: b.histogram(metricReleaseDuration, "Per-release analysis duration in seconds", "s",
			durationBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// ReleaseSkipped counts a release without a resolvable tag.
func (pm *PipelineMetrics) ReleaseSkipped(ctx context.Context, name string) {
	if pm == nil {
		return
	}

	pm.releasesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String(attrRelease, name)))
}

// ReleaseAnalysed records the rows written for one release and its duration.
func (pm *PipelineMetrics) ReleaseAnalysed(ctx context.Context, name string, rows, buggy int, elapsed time.Duration) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrRelease, name))

	pm.methodsEmitted.Add(ctx, int64(rows), attrs)
	pm.methodsBuggy.Add(ctx, int64(buggy), attrs)
	pm.releaseDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// ParseFailure counts a file that could not be parsed.
func (pm *PipelineMetrics) ParseFailure(ctx context.Context, _, reason string) {
	if pm == nil {
		return
	}

	pm.parseFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// HistoryFailure counts a method whose change statistics fell back to zero.
func (pm *PipelineMetrics) HistoryFailure(ctx context.Context, reason string) {
	if pm == nil {
		return
	}

	pm.historyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// metricBuilder accumulates instrument creation errors so a set of
// instruments can be built with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}
