package trainer

import (
	"context"

	"github.com/samcharles93/charnn/internal/journal"
	"github.com/samcharles93/charnn/internal/options"
)

// Recorder receives the history of a run.
type Recorder interface {
	BeginRun(ctx context.Context, runID, corpus string, opts options.Options, resumed bool) error
	RecordLoss(ctx context.Context, runID string, step int, loss, smooth float64) error
	RecordSample(ctx context.Context, runID string, step int, text string) error
	RecordSnapshot(ctx context.Context, runID string, step int, path string) error
}

type nopRecorder struct{}

func (nopRecorder) BeginRun(context.Context, string, string, options.Options, bool) error {
	return nil
}
func (nopRecorder) RecordLoss(context.Context, string, int, float64, float64) error { return nil }
func (nopRecorder) RecordSample(context.Context, string, int, string) error         { return nil }
func (nopRecorder) RecordSnapshot(context.Context, string, int, string) error       { return nil }

// JournalRecorder writes run history to a sqlite journal.
type JournalRecorder struct {
	J *journal.Journal
}

func (r JournalRecorder) BeginRun(ctx context.Context, runID, corpus string, opts options.Options, resumed bool) error {
	run := journal.Run{ID: runID, Corpus: corpus, Options: opts}
	if resumed {
		return r.J.EnsureRun(ctx, run)
	}
	return r.J.StartRun(ctx, run)
}

func (r JournalRecorder) RecordLoss(ctx context.Context, runID string, step int, loss, smooth float64) error {
	return r.J.RecordLoss(ctx, runID, step, loss, smooth)
}

func (r JournalRecorder) RecordSample(ctx context.Context, runID string, step int, text string) error {
	return r.J.RecordSample(ctx, runID, step, text)
}

func (r JournalRecorder) RecordSnapshot(ctx context.Context, runID string, step int, path string) error {
	return r.J.RecordSnapshot(ctx, runID, step, path)
}
