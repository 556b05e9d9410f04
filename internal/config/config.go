// Package config provides the configuration of an ebasdb database.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ebasdb/ebasdb/internal/codec"
	"github.com/ebasdb/ebasdb/internal/logging"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "EBASDB_"

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the configuration of a database.
type Config struct {
	// DataDir is the database root holding value_index and site_index
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DumpDir holds one record dump per site
	DumpDir string `json:"dump_dir" yaml:"dump_dir"`

	// RawDir holds the raw data files and their extraction records
	RawDir string `json:"raw_dir" yaml:"raw_dir"`

	// Codec names the serialization of the persisted files: zst, sz, lz4 or bin
	Codec string `json:"codec" yaml:"codec"`

	// Workers bounds the indexing and dumping worker pools
	Workers int `json:"workers" yaml:"workers"`

	// Detailed keeps the file attributes in the site index
	Detailed bool `json:"detailed" yaml:"detailed"`

	// Progress draws progress bars on stderr
	Progress bool `json:"progress" yaml:"progress"`

	Log LogConfig `json:"log" yaml:"log"`

	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`

	// UsePathStyle addresses the bucket in the path, as MinIO expects
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration of a local database.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./ebas",
		Codec:    codec.DefaultName,
		Workers:  runtime.NumCPU(),
		Detailed: true,
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Storage: StorageConfig{
			Type: StorageLocal,
		},
	}
}

// Resolve sets the directories left empty relative to DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./ebas"
	}
	if c.DumpDir == "" {
		c.DumpDir = filepath.Join(c.DataDir, "dumps")
	}
	if c.RawDir == "" {
		c.RawDir = filepath.Join(c.DataDir, "raw_data")
	}
	if c.Codec == "" {
		c.Codec = codec.DefaultName
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if _, err := codec.Canonical(c.Codec); err != nil {
		return fmt.Errorf("invalid codec: %w", err)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Storage.Type != StorageLocal && c.Storage.Type != StorageS3 {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == StorageS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. With no arguments
// it reads ".env" in the working directory. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the EBASDB_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("DUMP_DIR"); v != "" {
		cfg.DumpDir = v
	}
	if v := getenv("RAW_DIR"); v != "" {
		cfg.RawDir = v
	}
	if v := getenv("CODEC"); v != "" {
		cfg.Codec = v
	}
	if v := getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := getenv("DETAILED"); v != "" {
		cfg.Detailed = parseBool(v)
	}
	if v := getenv("PROGRESS"); v != "" {
		cfg.Progress = parseBool(v)
	}

	// Logging configuration
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Storage configuration
	if v := getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := getenv("S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := getenv("S3_PREFIX"); v != "" {
		cfg.Storage.S3.Prefix = v
	}
	if v := getenv("S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = parseBool(v)
	}
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// EnsureDirectories creates the database directories. Under S3 storage only
// the raw data directory is local.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.RawDir}
	if c.Storage.Type != StorageS3 {
		dirs = append(dirs, c.DataDir, c.DumpDir)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
