package dataset

import (
	"context"
	"time"
)

// Observer receives pipeline events for metrics.
type Observer interface {
	ReleaseSkipped(ctx context.Context, name string)
	ReleaseAnalysed(ctx context.Context, name string, rows, buggy int, elapsed time.Duration)
	ParseFailure(ctx context.Context, path, reason string)
	HistoryFailure(ctx context.Context, reason string)
}

type nopObserver struct{}

func (nopObserver) ReleaseSkipped(context.Context, string)                           {}
func (nopObserver) ReleaseAnalysed(context.Context, string, int, int, time.Duration) {}
func (nopObserver) ParseFailure(context.Context, string, string)                     {}
func (nopObserver) HistoryFailure(context.Context, string)                           {}
