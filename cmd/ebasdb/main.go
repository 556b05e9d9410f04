// Package main implements the ebasdb command line tool.
// It builds the database from a directory of raw files, queries it and
// exports the index in readable form.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"

	"github.com/ebasdb/ebasdb/internal/config"
	"github.com/ebasdb/ebasdb/internal/db"
	"github.com/ebasdb/ebasdb/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Args holds the global flags and the subcommands.
type Args struct {
	Config   string `arg:"-c,--config" help:"path to configuration file (YAML or JSON)"`
	DataDir  string `arg:"-d,--data-dir" help:"database root directory"`
	RawDir   string `arg:"--raw-dir" help:"directory of raw data files"`
	Codec    string `arg:"--codec" help:"serialization codec: zst, sz, lz4 or bin"`
	Workers  int    `arg:"-n,--workers" help:"number of parallel workers"`
	Progress bool   `arg:"-p,--progress" help:"show progress bars"`
	LogLevel string `arg:"--log-level" help:"log level: debug, info, warn, error"`

	Build    *BuildCmd    `arg:"subcommand:build" help:"index the raw files and dump their records"`
	Query    *QueryCmd    `arg:"subcommand:query" help:"select records and print them as CSV"`
	Overview *OverviewCmd `arg:"subcommand:overview" help:"print what the database covers"`
	Export   *ExportCmd   `arg:"subcommand:export" help:"write the index as JSON"`
}

// Version implements arg.Versioned.
func (Args) Version() string {
	return fmt.Sprintf("ebasdb %s (commit: %s)", version, commit)
}

// Description implements arg.Described.
func (Args) Description() string {
	return "ebasdb - index and query engine for EBAS measurement records\n\n" +
		"Environment Variables:\n" +
		"  EBASDB_DATA_DIR       Database root directory\n" +
		"  EBASDB_CODEC          Serialization codec\n" +
		"  EBASDB_WORKERS        Number of parallel workers\n" +
		"  EBASDB_STORAGE_TYPE   Storage type (local, s3)\n" +
		"  EBASDB_S3_BUCKET      S3 bucket for s3 storage\n"
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	var args Args
	parser := arg.MustParse(&args)
	if parser.Subcommand() == nil {
		parser.WriteHelp(os.Stdout)
		os.Exit(2)
	}

	cfg, err := loadConfig(&args)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg, db.Options{Logger: logger, ProgressWriter: os.Stderr})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	switch {
	case args.Build != nil:
		err = args.Build.Execute(ctx, database)
	case args.Query != nil:
		err = args.Query.Execute(ctx, database)
	case args.Overview != nil:
		err = args.Overview.Execute(ctx, database)
	case args.Export != nil:
		err = args.Export.Execute(ctx, database)
	}
	if err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(args *Args) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if args.Config != "" {
		cfg, err = config.LoadFromFile(args.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if args.DataDir != "" {
		cfg.DataDir = args.DataDir
	}
	if args.RawDir != "" {
		cfg.RawDir = args.RawDir
	}
	if args.Codec != "" {
		cfg.Codec = args.Codec
	}
	if args.Workers > 0 {
		cfg.Workers = args.Workers
	}
	if args.Progress {
		cfg.Progress = true
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}

	return cfg, nil
}
