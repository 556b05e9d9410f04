// Package workers runs independent tasks on a bounded pool of goroutines and
// collects every task's outcome. A failing task never cancels its siblings:
// each result carries its own error and the caller decides what to do with
// it once all tasks have finished.
package workers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ebasdb/ebasdb/internal/logging"
)

// Options configures a pool run.
type Options struct {
	// Workers bounds the number of concurrent tasks. Zero means NumCPU,
	// capped at the number of items.
	Workers int

	// Progress enables a progress bar on ProgressWriter (stderr by default).
	Progress       bool
	ProgressWriter io.Writer

	// Description labels the progress bar and the log lines
	Description string

	Logger *slog.Logger
}

// Result is the outcome of one task. Index is the position of the item in
// the input slice.
type Result[O any] struct {
	Index int
	Value O
	Err   error
}

// Map runs fn over items and returns one result per item in input order. It
// waits for every task before returning; there is no early return.
func Map[I, O any](ctx context.Context, items []I, opts Options, fn func(ctx context.Context, item I) (O, error)) []Result[O] {
	results := make([]Result[O], len(items))
	if len(items) == 0 {
		return results
	}

	n := opts.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > len(items) {
		n = len(items)
	}

	logger := logging.OrNop(opts.Logger)
	logger.Info("starting workers", "task", opts.Description, "workers", n, "count", len(items))

	bar := newBar(opts, len(items))

	var g errgroup.Group
	g.SetLimit(n)
	for i, item := range items {
		g.Go(func() error {
			results[i] = run(ctx, i, item, fn)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if bar != nil {
		_ = bar.Finish()
	}
	return results
}

// run executes a single task, turning a panic into an error.
func run[I, O any](ctx context.Context, i int, item I, fn func(ctx context.Context, item I) (O, error)) (res Result[O]) {
	res.Index = i
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("workers: task %d panicked: %v", i, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	res.Value, res.Err = fn(ctx, item)
	return res
}

func newBar(opts Options, total int) *progressbar.ProgressBar {
	if !opts.Progress {
		return nil
	}
	w := opts.ProgressWriter
	if w == nil {
		w = os.Stderr
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

// Failed returns the results that carry an error.
func Failed[O any](results []Result[O]) []Result[O] {
	var out []Result[O]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
