package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ebasdb/ebasdb/internal/adapter"
	"github.com/ebasdb/ebasdb/internal/dictionary"
	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/internal/query"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// Update rebuilds the database from the raw files: build the site index,
// derive the dictionary, persist it, encode the index, persist it, dump the
// records of every site and finally load the result. Files and sites that
// fail are reported in the build info and do not stop the run.
func (d *Database) Update(ctx context.Context) (*BuildInfo, error) {
	files, err := d.listFiles()
	if err != nil {
		return nil, err
	}

	res, err := d.builder.Build(ctx, files)
	if err != nil {
		return nil, err
	}
	idx := res.Index

	d.logger.Info("creating value index")
	dict := dictionary.Build(idx)
	if err := d.put(ctx, ValueIndexName, dict.Snapshot()); err != nil {
		return nil, err
	}

	if err := dictionary.NewEncoder(dict).Encode(idx); err != nil {
		return nil, err
	}
	if err := d.put(ctx, SiteIndexName, idx); err != nil {
		return nil, err
	}

	report, err := d.store.Materialize(ctx, idx)
	if err != nil {
		return nil, err
	}

	// A site without a dump cannot be loaded; drop it and persist again.
	var failedSites []string
	for _, f := range report.Failed {
		if f.File == "" {
			failedSites = append(failedSites, f.Site)
			delete(idx, f.Site)
		}
	}
	if len(failedSites) > 0 {
		if err := d.put(ctx, SiteIndexName, idx); err != nil {
			return nil, err
		}
	}

	removed, err := d.store.RemoveStale(ctx, idx.SiteIDs())
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		d.logger.Info("removed stale dumps", "count", removed)
	}

	failedFiles := res.FailedFiles()
	for _, f := range report.Failed {
		if f.File != "" {
			failedFiles = append(failedFiles, f.File)
		}
	}
	slices.Sort(failedFiles)
	failedFiles = slices.Compact(failedFiles)

	info := &BuildInfo{
		RunID:       uuid.NewString(),
		Codec:       d.codec.Name(),
		CreatedAt:   time.Now().UTC(),
		Sites:       len(idx),
		Files:       idx.FileCount(),
		Entries:     idx.EntryCount(),
		Records:     report.Records,
		FailedFiles: failedFiles,
		FailedSites: failedSites,
	}
	if err := d.writeBuildInfo(ctx, info); err != nil {
		return nil, err
	}
	d.logger.Info("database updated",
		"run_id", info.RunID,
		"sites", info.Sites,
		"records", info.Records,
		"failed_files", len(info.FailedFiles),
		"failed_sites", len(info.FailedSites))

	if err := d.Init(ctx); err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Database) listFiles() ([]string, error) {
	if l, ok := d.adapter.(adapter.Lister); ok {
		return l.List()
	}
	return adapter.ListRawFiles(d.cfg.RawDir)
}

// Init loads the persisted dictionary, site index and every site dump into
// memory. A missing or corrupt file fails the load and leaves the previously
// loaded state in place.
func (d *Database) Init(ctx context.Context) error {
	info, err := d.readBuildInfo(ctx)
	if err != nil {
		return err
	}
	if info != nil && info.Codec != d.codec.Name() {
		return errs.NewStorageError(errs.CodeCodecMismatch,
			fmt.Sprintf("db: database was built with codec %q, configured codec is %q", info.Codec, d.codec.Name()), nil)
	}

	var snap dictionary.Snapshot
	if err := d.get(ctx, ValueIndexName, &snap); err != nil {
		return err
	}
	dict, err := dictionary.FromSnapshot(snap)
	if err != nil {
		return err
	}

	var idx types.SiteIndex
	if err := d.get(ctx, SiteIndexName, &idx); err != nil {
		return err
	}
	if idx == nil {
		idx = types.SiteIndex{}
	}
	err = idx.Walk(func(site *types.Site, file string, entry *types.ContentEntry) error {
		if !entry.Encoded {
			return errs.NewStorageError(errs.CodeCorruptBlob,
				fmt.Sprintf("db: entry %s/%s/%s of the site index is not encoded", site.ID, file, entry.Var), nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	headers, payloads, err := d.store.Load(ctx, idx.SiteIDs())
	if err != nil {
		return err
	}
	engine := query.NewEngine(idx, dict, headers, payloads, d.logger)

	d.mu.Lock()
	d.siteIndex, d.dict, d.engine, d.info = idx, dict, engine, info
	d.mu.Unlock()

	d.logger.Info("database loaded", "sites", len(idx), "components", dict.Len(dictionary.DomainComponent))
	return nil
}

func (d *Database) loaded() (*query.Engine, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.engine == nil {
		return nil, ErrNotLoaded
	}
	return d.engine, nil
}

// Select evaluates cond without joining the time series.
func (d *Database) Select(cond query.Condition) (*query.Selection, error) {
	e, err := d.loaded()
	if err != nil {
		return nil, err
	}
	return e.Select(cond)
}

// Query selects the records matching cond and joins their rows into a
// table. No match is an empty table.
func (d *Database) Query(cond query.Condition, decode bool) (*query.Table, error) {
	e, err := d.loaded()
	if err != nil {
		return nil, err
	}
	for key, values := range cond.Predicates() {
		d.stats.RecordPredicate(key, values)
	}
	sel, err := e.Select(cond)
	if err != nil {
		return nil, err
	}
	table, err := e.Join(sel, decode)
	if err != nil {
		return nil, err
	}
	d.stats.RecordResult(table.Len())
	return table, nil
}
