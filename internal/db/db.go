// Package db composes the site index builder, the dictionary, the record
// store and the query engine into one database rooted at a data directory.
//
// Layout of a database:
//
//	<data_dir>/value_index.<codec>   dictionary snapshot
//	<data_dir>/site_index.<codec>    encoded site index
//	<data_dir>/build_info.json       run summary of the last Update
//	<dump_dir>/<site_id>.<codec>     one record dump per site
package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ebasdb/ebasdb/internal/adapter"
	"github.com/ebasdb/ebasdb/internal/codec"
	"github.com/ebasdb/ebasdb/internal/config"
	"github.com/ebasdb/ebasdb/internal/dictionary"
	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/internal/logging"
	"github.com/ebasdb/ebasdb/internal/observability"
	"github.com/ebasdb/ebasdb/internal/query"
	"github.com/ebasdb/ebasdb/internal/recordstore"
	"github.com/ebasdb/ebasdb/internal/siteindex"
	"github.com/ebasdb/ebasdb/internal/storage"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// Names of the persisted index files, without the codec extension.
const (
	ValueIndexName = "value_index"
	SiteIndexName  = "site_index"
	BuildInfoKey   = "build_info.json"
)

// statsWindow bounds how long an unused predicate stays in the query stats.
const statsWindow = time.Hour

// ErrNotLoaded is returned by read operations before Init or Update.
var ErrNotLoaded = errs.NewValidationError(errs.CodeNotLoaded, "db: database is not loaded")

// Options overrides the collaborators New would derive from the config.
type Options struct {
	// Adapter reads raw files. Defaults to a Sidecar over the raw directory.
	Adapter adapter.Adapter

	// IndexStore and DumpStore hold the index files and the site dumps.
	// Both default to the backend named by the storage config.
	IndexStore storage.BlobStore
	DumpStore  storage.BlobStore

	Logger         *slog.Logger
	ProgressWriter io.Writer
}

// Database owns the components of an ebas database. Update and Init replace
// the loaded state as a whole; queries see either the old or the new state.
type Database struct {
	cfg     *config.Config
	codec   codec.Codec
	adapter adapter.Adapter
	index   storage.BlobStore
	builder *siteindex.Builder
	store   *recordstore.Store
	stats   *observability.QueryStats
	logger  *slog.Logger

	mu        sync.RWMutex
	siteIndex types.SiteIndex
	dict      *dictionary.Dictionary
	engine    *query.Engine
	info      *BuildInfo
}

// New creates a database from cfg. Nothing is read until Init or Update.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Database, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	c, err := codec.Canonical(cfg.Codec)
	if err != nil {
		return nil, err
	}

	index, dumps := opts.IndexStore, opts.DumpStore
	if index == nil || dumps == nil {
		defIndex, defDumps, err := openStores(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if index == nil {
			index = defIndex
		}
		if dumps == nil {
			dumps = defDumps
		}
	}

	a := opts.Adapter
	if a == nil {
		a = adapter.NewSidecar(cfg.RawDir)
	}
	logger := logging.OrNop(opts.Logger)

	store, err := recordstore.New(dumps, c, a, recordstore.Options{
		Workers:        cfg.Workers,
		Progress:       cfg.Progress,
		ProgressWriter: opts.ProgressWriter,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	return &Database{
		cfg:     cfg,
		codec:   c,
		adapter: a,
		index:   index,
		builder: siteindex.NewBuilder(a, siteindex.Options{
			Workers:        cfg.Workers,
			Detailed:       cfg.Detailed,
			Progress:       cfg.Progress,
			ProgressWriter: opts.ProgressWriter,
			Logger:         logger,
		}),
		store:  store,
		stats:  observability.NewQueryStats(statsWindow),
		logger: logger,
	}, nil
}

func openStores(ctx context.Context, cfg *config.Config) (storage.BlobStore, storage.BlobStore, error) {
	switch cfg.Storage.Type {
	case config.StorageS3:
		s3cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3cfg.Region = cfg.Storage.S3.Region
		}
		s3cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3cfg.UsePathStyle = cfg.Storage.S3.UsePathStyle
		s3cfg.Prefix = cfg.Storage.S3.Prefix
		s, err := storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, s3cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, s.Sub("dumps"), nil
	default:
		index, err := storage.NewLocalStorage(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		dumps, err := storage.NewLocalStorage(cfg.DumpDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return index, dumps, nil
	}
}

// QueryStats returns the statistics of the queries run so far.
func (d *Database) QueryStats() *observability.QueryStats { return d.stats }

// Codec returns the canonical codec of the database.
func (d *Database) Codec() codec.Codec { return d.codec }

// Loaded reports whether an index is in memory.
func (d *Database) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.engine != nil
}

// SiteIndex returns the loaded, encoded site index. Callers must not modify
// it.
func (d *Database) SiteIndex() (types.SiteIndex, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.siteIndex == nil {
		return nil, ErrNotLoaded
	}
	return d.siteIndex, nil
}

// Dictionary returns the loaded dictionary.
func (d *Database) Dictionary() (*dictionary.Dictionary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dict == nil {
		return nil, ErrNotLoaded
	}
	return d.dict, nil
}

// BuildInfo returns the summary of the last Update, or nil when the database
// predates build info.
func (d *Database) BuildInfo() *BuildInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info
}

func (d *Database) key(name string) string {
	return name + "." + d.codec.Name()
}

// put serializes v with the canonical codec under name.
func (d *Database) put(ctx context.Context, name string, v any) error {
	key := d.key(name)
	d.logger.Info("dumping "+name, "key", key)
	data, err := d.codec.Marshal(v)
	if err != nil {
		return errs.NewStorageError(errs.CodeWriteFailed, "db: failed to serialize "+name, err)
	}
	if err := d.index.Put(ctx, key, data); err != nil {
		return errs.NewStorageError(errs.CodeWriteFailed, "db: failed to write "+key, err)
	}
	return nil
}

// get reads name back into v.
func (d *Database) get(ctx context.Context, name string, v any) error {
	key := d.key(name)
	data, err := d.index.Get(ctx, key)
	if err != nil {
		code := errs.CodeReadFailed
		if errors.Is(err, storage.ErrObjectNotFound) {
			code = errs.CodeObjectNotFound
		}
		return errs.NewStorageError(code, "db: failed to read "+key, err)
	}
	if err := d.codec.Unmarshal(data, v); err != nil {
		return err
	}
	return nil
}

// BuildInfo summarizes one Update run. It is stored as JSON next to the
// index files so that Init can check the codec before decoding anything.
type BuildInfo struct {
	RunID       string    `json:"run_id"`
	Codec       string    `json:"codec"`
	CreatedAt   time.Time `json:"created_at"`
	Sites       int       `json:"sites"`
	Files       int       `json:"files"`
	Entries     int       `json:"entries"`
	Records     int       `json:"records"`
	FailedFiles []string  `json:"failed_files"`
	FailedSites []string  `json:"failed_sites"`
}

func (d *Database) writeBuildInfo(ctx context.Context, info *BuildInfo) error {
	data, err := gojson.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("db: failed to serialize build info: %w", err)
	}
	if err := d.index.Put(ctx, BuildInfoKey, data); err != nil {
		return errs.NewStorageError(errs.CodeWriteFailed, "db: failed to write "+BuildInfoKey, err)
	}
	return nil
}

// readBuildInfo returns nil without error when no build info was written.
func (d *Database) readBuildInfo(ctx context.Context) (*BuildInfo, error) {
	data, err := d.index.Get(ctx, BuildInfoKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewStorageError(errs.CodeReadFailed, "db: failed to read "+BuildInfoKey, err)
	}
	var info BuildInfo
	if err := gojson.Unmarshal(data, &info); err != nil {
		return nil, errs.NewStorageError(errs.CodeCorruptBlob, "db: failed to parse "+BuildInfoKey, err)
	}
	return &info, nil
}
