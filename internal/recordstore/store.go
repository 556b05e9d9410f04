// Package recordstore materializes and loads the per-site record dumps.
//
// Each site is persisted as one blob "<site_id>.<codec>" holding the content
// index headers and the quality-filtered time series of every variable of
// every file of the site. Record ids are local to the site and start at 0.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ebasdb/ebasdb/internal/adapter"
	"github.com/ebasdb/ebasdb/internal/codec"
	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/internal/logging"
	"github.com/ebasdb/ebasdb/internal/storage"
	"github.com/ebasdb/ebasdb/internal/workers"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// SiteDump is the persisted unit of one site. Headers[i] and Payloads[i]
// describe the record with id i.
type SiteDump struct {
	Site     string          `json:"site"`
	Headers  []types.Header  `json:"content_index"`
	Payloads []types.Payload `json:"records"`
}

const defaultLoadConcurrency = 8

// Headers maps a site id to its content index, indexed by record id.
type Headers map[string][]types.Header

// Payloads maps a site id to its time series, indexed by record id.
type Payloads map[string][]types.Payload

// Options configures a Store.
type Options struct {
	Workers        int
	Progress       bool
	ProgressWriter io.Writer
	Logger         *slog.Logger

	// BadQC overrides the invalidating QC flags
	BadQC QualitySet
}

// Store reads and writes site dumps.
type Store struct {
	blobs   storage.BlobStore
	codec   codec.Codec
	adapter adapter.Adapter
	opts    Options
	bad     QualitySet
	logger  *slog.Logger
}

// New creates a store over blobs. The codec must be able to read back what it
// writes. The adapter is only needed by Materialize and may be nil for a
// read-only store.
func New(blobs storage.BlobStore, c codec.Codec, a adapter.Adapter, opts Options) (*Store, error) {
	if c.ExportOnly() {
		return nil, errs.NewStorageError(errs.CodeExportOnlyCodec,
			fmt.Sprintf("recordstore: codec %q is export-only", c.Name()), nil)
	}
	bad := opts.BadQC
	if bad == nil {
		bad = DefaultBadQC()
	}
	return &Store{
		blobs:   blobs,
		codec:   c,
		adapter: a,
		opts:    opts,
		bad:     bad,
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

// Key returns the blob key of a site dump.
func (s *Store) Key(siteID string) string {
	return siteID + "." + s.codec.Name()
}

// SiteFailure records a site, or one file of a site, that could not be
// materialized. File is empty when the whole site failed.
type SiteFailure struct {
	Site string
	File string
	Err  error
}

// MaterializeReport summarizes a Materialize run.
type MaterializeReport struct {
	Sites   int
	Records int
	Failed  []SiteFailure
}

type siteOutcome struct {
	records  int
	failures []SiteFailure
}

// Materialize writes one dump per site of an encoded index. A file that
// cannot be read is logged, reported and left out of its site's dump; a site
// whose dump cannot be written is reported. Neither stops the other sites.
func (s *Store) Materialize(ctx context.Context, idx types.SiteIndex) (*MaterializeReport, error) {
	if s.adapter == nil {
		return nil, errs.NewInternalError("recordstore: materialize needs an adapter", nil)
	}
	siteIDs := idx.SiteIDs()
	s.logger.Info("dumping site records", "sites", len(siteIDs))

	results := workers.Map(ctx, siteIDs, workers.Options{
		Workers:        s.opts.Workers,
		Progress:       s.opts.Progress,
		ProgressWriter: s.opts.ProgressWriter,
		Description:    "dumping",
		Logger:         s.logger,
	}, func(ctx context.Context, id string) (siteOutcome, error) {
		dump, failures, err := s.BuildDump(ctx, idx[id])
		if err != nil {
			return siteOutcome{failures: failures}, err
		}
		if err := s.Write(ctx, dump); err != nil {
			return siteOutcome{failures: failures}, err
		}
		return siteOutcome{records: len(dump.Headers), failures: failures}, nil
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recordstore: materialize interrupted: %w", err)
	}

	report := &MaterializeReport{}
	for _, r := range results {
		report.Failed = append(report.Failed, r.Value.failures...)
		if r.Err != nil {
			s.logger.Warn("failed to dump site", "site", siteIDs[r.Index], "error", r.Err)
			report.Failed = append(report.Failed, SiteFailure{Site: siteIDs[r.Index], Err: r.Err})
			continue
		}
		report.Sites++
		report.Records += r.Value.records
	}
	s.logger.Info("site records dumped", "sites", report.Sites, "records", report.Records, "failed", len(report.Failed))
	return report, nil
}

// BuildDump reads the time series of every entry of an encoded site. Files
// that fail are skipped and returned as failures.
func (s *Store) BuildDump(ctx context.Context, site *types.Site) (*SiteDump, []SiteFailure, error) {
	dump := &SiteDump{Site: site.ID}
	var failures []SiteFailure

	for _, file := range site.FileNames() {
		if err := ctx.Err(); err != nil {
			return nil, failures, err
		}
		rec := site.Files[file]
		if rec == nil {
			continue
		}
		headers, payloads, err := s.readFile(ctx, file, rec, len(dump.Headers))
		if err != nil {
			s.logger.Warn("failed to read file", "site", site.ID, "file", file, "error", err)
			failures = append(failures, SiteFailure{Site: site.ID, File: file, Err: err})
			continue
		}
		dump.Headers = append(dump.Headers, headers...)
		dump.Payloads = append(dump.Payloads, payloads...)
	}
	return dump, failures, nil
}

// readFile builds the records of one file, numbering them from firstID. The
// file contributes all of its records or none.
func (s *Store) readFile(ctx context.Context, file string, rec *types.FileRecord, firstID int) ([]types.Header, []types.Payload, error) {
	headers := make([]types.Header, 0, len(rec.Contents))
	payloads := make([]types.Payload, 0, len(rec.Contents))
	for i := range rec.Contents {
		e := &rec.Contents[i]
		if !e.Encoded {
			return nil, nil, errs.NewValidationError(errs.CodeNotEncoded,
				fmt.Sprintf("recordstore: entry %s of %s is not encoded", e.Var, file))
		}
		series, err := s.adapter.Series(ctx, file, e.Var)
		if err != nil {
			return nil, nil, errs.NewAdaptationError(errs.CodeSeriesFailed,
				fmt.Sprintf("recordstore: failed to read %s of %s", e.Var, file), err)
		}
		p, err := s.payload(series)
		if err != nil {
			return nil, nil, fmt.Errorf("recordstore: %s of %s: %w", e.Var, file, err)
		}
		headers = append(headers, types.NewHeader(firstID+len(headers), file, e))
		payloads = append(payloads, p)
	}
	return headers, payloads, nil
}

// payload keeps the last revision of values and flags, checks that they line
// up with the time bounds and applies the quality filter.
func (s *Store) payload(series *adapter.Series) (types.Payload, error) {
	val := LastRevision(series.Values)
	qc := LastRevision(series.QC)
	if len(val) != len(series.TimeBounds) || (qc != nil && len(qc) != len(val)) {
		return types.Payload{}, errs.NewAdaptationError(errs.CodeShapeMismatch,
			fmt.Sprintf("recordstore: %d time bounds, %d values, %d flags", len(series.TimeBounds), len(val), len(qc)), nil)
	}
	return types.Payload{
		TS:  slices.Clone(series.TimeBounds),
		Val: FilterQuality(val, qc, s.bad),
	}, nil
}

// Write persists a site dump.
func (s *Store) Write(ctx context.Context, dump *SiteDump) error {
	data, err := s.codec.Marshal(dump)
	if err != nil {
		return errs.NewStorageError(errs.CodeWriteFailed, "recordstore: failed to encode dump of "+dump.Site, err)
	}
	if err := s.blobs.Put(ctx, s.Key(dump.Site), data); err != nil {
		return errs.NewStorageError(errs.CodeWriteFailed, "recordstore: failed to write dump of "+dump.Site, err)
	}
	return nil
}

// Read loads one site dump. It fails fast on a missing or corrupt blob.
func (s *Store) Read(ctx context.Context, siteID string) (*SiteDump, error) {
	data, err := s.blobs.Get(ctx, s.Key(siteID))
	if err != nil {
		return nil, storageReadError(siteID, err)
	}
	return s.decode(siteID, data)
}

func (s *Store) decode(siteID string, data []byte) (*SiteDump, error) {
	var dump SiteDump
	if err := s.codec.Unmarshal(data, &dump); err != nil {
		return nil, errs.NewStorageError(errs.CodeCorruptBlob, "recordstore: corrupt dump of "+siteID, err)
	}
	if dump.Site != siteID || len(dump.Headers) != len(dump.Payloads) {
		return nil, errs.NewStorageError(errs.CodeCorruptBlob, "recordstore: inconsistent dump of "+siteID, nil)
	}
	for i := range dump.Headers {
		if dump.Headers[i].ID != i {
			return nil, errs.NewStorageError(errs.CodeCorruptBlob,
				fmt.Sprintf("recordstore: dump of %s has record %d at position %d", siteID, dump.Headers[i].ID, i), nil)
		}
		if err := dump.Payloads[i].Validate(); err != nil {
			return nil, errs.NewStorageError(errs.CodeCorruptBlob, "recordstore: corrupt dump of "+siteID, err)
		}
	}
	return &dump, nil
}

// Load reads the dumps of siteIDs in parallel. Any missing or corrupt dump
// fails the whole load.
func (s *Store) Load(ctx context.Context, siteIDs []string) (Headers, Payloads, error) {
	n := s.opts.Workers
	if n <= 0 {
		n = defaultLoadConcurrency
	}
	keys := make([]string, len(siteIDs))
	for i, id := range siteIDs {
		keys[i] = s.Key(id)
	}
	batch := storage.NewBatchReader(s.blobs, n).Read(ctx, keys)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	headers := make(Headers, len(siteIDs))
	payloads := make(Payloads, len(siteIDs))
	for i, id := range siteIDs {
		if err := batch.Errors[keys[i]]; err != nil {
			return nil, nil, storageReadError(id, err)
		}
		dump, err := s.decode(id, batch.Blobs[keys[i]])
		if err != nil {
			return nil, nil, err
		}
		headers[id] = dump.Headers
		payloads[id] = dump.Payloads
	}
	s.logger.Debug("site dumps loaded", "sites", len(siteIDs))
	return headers, payloads, nil
}

// RemoveStale deletes dumps of this codec whose site is not in keep.
func (s *Store) RemoveStale(ctx context.Context, keep []string) (int, error) {
	keys, err := s.blobs.List(ctx, "")
	if err != nil {
		return 0, errs.NewStorageError(errs.CodeReadFailed, "recordstore: failed to list dumps", err)
	}
	wanted := make(map[string]bool, len(keep))
	for _, id := range keep {
		wanted[s.Key(id)] = true
	}
	removed := 0
	for _, k := range keys {
		if wanted[k] || !strings.HasSuffix(k, "."+s.codec.Name()) || strings.Contains(k, "/") {
			continue
		}
		if err := s.blobs.Delete(ctx, k); err != nil {
			return removed, errs.NewStorageError(errs.CodeWriteFailed, "recordstore: failed to remove "+k, err)
		}
		removed++
	}
	return removed, nil
}

func storageReadError(siteID string, err error) error {
	code := errs.CodeReadFailed
	if errors.Is(err, storage.ErrObjectNotFound) {
		code = errs.CodeObjectNotFound
	}
	return errs.NewStorageError(code, "recordstore: failed to read dump of "+siteID, err)
}
