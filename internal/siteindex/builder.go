// Package siteindex builds the two-level site index (site, file, content
// entry) from raw files. Files are extracted in parallel, each worker returns
// a self-contained partial index, and the partials are folded together by an
// associative merge on the calling goroutine.
package siteindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/biter777/countries"

	"github.com/ebasdb/ebasdb/internal/adapter"
	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/internal/logging"
	"github.com/ebasdb/ebasdb/internal/workers"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// Options configures a Builder.
type Options struct {
	Workers int

	// Detailed keeps the global attributes of every file in the index
	Detailed bool

	Progress       bool
	ProgressWriter io.Writer
	Logger         *slog.Logger
}

// Builder builds a site index through a raw-file adapter.
type Builder struct {
	adapter adapter.Adapter
	opts    Options
	logger  *slog.Logger
}

// NewBuilder creates a builder reading raw files through a.
func NewBuilder(a adapter.Adapter, opts Options) *Builder {
	return &Builder{
		adapter: a,
		opts:    opts,
		logger:  logging.OrNop(opts.Logger),
	}
}

// Failure records a raw file that could not be adapted.
type Failure struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

// Message returns the error text of the failure.
func (f Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Result is the outcome of a build.
type Result struct {
	Index  types.SiteIndex
	Failed []Failure
}

// FailedFiles returns the names of the files that failed adaptation.
func (r *Result) FailedFiles() []string {
	names := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		names[i] = f.File
	}
	return names
}

// Build extracts every file and merges the results. A file that fails is
// reported in Result.Failed and does not stop the others. The only error
// returned is the context's.
func (b *Builder) Build(ctx context.Context, files []string) (*Result, error) {
	b.logger.Info("gathering site information", "count", len(files))

	results := workers.Map(ctx, files, workers.Options{
		Workers:        b.opts.Workers,
		Progress:       b.opts.Progress,
		ProgressWriter: b.opts.ProgressWriter,
		Description:    "indexing",
		Logger:         b.logger,
	}, b.extract)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("siteindex: build interrupted: %w", err)
	}

	res := &Result{}
	partials := make([]types.SiteIndex, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			file := files[r.Index]
			b.logger.Warn("failed to index file", "file", file, "error", r.Err)
			res.Failed = append(res.Failed, Failure{
				File: file,
				Err:  errs.NewAdaptationError(errs.CodeExtractFailed, "siteindex: failed to index "+file, r.Err),
			})
			continue
		}
		partials = append(partials, r.Value)
	}
	res.Index = Merge(partials...)

	if len(res.Failed) > 0 {
		b.logger.Warn("some files could not be indexed", "failed", len(res.Failed), "count", len(files))
	}
	b.logger.Info("site index built", "sites", len(res.Index), "files", res.Index.FileCount(), "entries", res.Index.EntryCount())
	return res, nil
}

// extract adapts one file into a normalized partial index.
func (b *Builder) extract(ctx context.Context, file string) (types.SiteIndex, error) {
	partial, err := b.adapter.Extract(ctx, file)
	if err != nil {
		return nil, err
	}
	for id, site := range partial {
		if site == nil || site.ID != id {
			return nil, fmt.Errorf("siteindex: %s returned an inconsistent record for site %q", file, id)
		}
		site.Country = CountryOf(id)
		for name, rec := range site.Files {
			if rec == nil {
				return nil, fmt.Errorf("siteindex: %s returned an empty record for %s", file, name)
			}
			if !b.opts.Detailed {
				rec.DetailAttrs = nil
			}
			for i := range rec.Contents {
				e := &rec.Contents[i]
				if e.Encoded {
					return nil, fmt.Errorf("siteindex: %s returned an encoded entry", file)
				}
				if err := e.Validate(); err != nil {
					return nil, err
				}
				e.Labels.Site = id
			}
		}
	}
	return partial, nil
}

// CountryOf derives the country name from the first two characters of a
// site id. Unknown codes yield the code itself.
func CountryOf(siteID string) string {
	if len(siteID) < 2 {
		return ""
	}
	code := strings.ToUpper(siteID[:2])
	c := countries.ByName(code)
	if !c.IsValid() || c.Alpha2() != code {
		return code
	}
	return c.String()
}
