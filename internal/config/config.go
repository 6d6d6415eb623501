// Package config loads protocoldesk settings from an optional TOML file and
// PROTOCOLDESK_* environment variables. Environment values win over the file,
// the file wins over Default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Environment variables.
const (
	EnvAddr            = "PROTOCOLDESK_ADDR"
	EnvCORSOrigins     = "PROTOCOLDESK_CORS_ORIGINS"
	EnvStorageDriver   = "PROTOCOLDESK_STORAGE_DRIVER"
	EnvSQLitePath      = "PROTOCOLDESK_SQLITE_PATH"
	EnvPostgresDSN     = "PROTOCOLDESK_POSTGRES_DSN"
	EnvBlobDriver      = "PROTOCOLDESK_BLOB_DRIVER"
	EnvBlobFSRoot      = "PROTOCOLDESK_BLOB_FS_ROOT"
	EnvBlobS3Bucket    = "PROTOCOLDESK_BLOB_S3_BUCKET"
	EnvBlobS3Region    = "PROTOCOLDESK_BLOB_S3_REGION"
	EnvBlobS3Endpoint  = "PROTOCOLDESK_BLOB_S3_ENDPOINT"
	EnvBlobS3PathStyle = "PROTOCOLDESK_BLOB_S3_PATH_STYLE"
	EnvLogLevel        = "PROTOCOLDESK_LOG_LEVEL"
	EnvLogConsole      = "PROTOCOLDESK_LOG_CONSOLE"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP    HTTPConfig
	Storage StorageConfig
	Blob    BlobConfig
	Log     LogConfig
	Export  ExportConfig
	Seed    SeedConfig
}

type HTTPConfig struct {
	Addr        string
	CORSOrigins []string
}

type StorageConfig struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

type BlobConfig struct {
	Driver string
	FSRoot string
	S3     S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

type LogConfig struct {
	Level   string
	Console bool
}

type ExportConfig struct {
	QueueSize     int
	PresignExpiry time.Duration
	// RetainJobs bounds how many finished export jobs stay queryable.
	RetainJobs int
}

// SeedConfig lists reference data inserted when the respective list is empty.
type SeedConfig struct {
	Regions   []string
	Executors []string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:        ":3001",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			Driver:     StorageSQLite,
			SQLitePath: "protocoldesk.db",
		},
		Blob: BlobConfig{
			Driver: "fs",
			FSRoot: "./exports",
			S3:     S3Config{Region: "us-east-1"},
		},
		Log: LogConfig{Level: "info", Console: true},
		Export: ExportConfig{
			QueueSize:     32,
			PresignExpiry: 15 * time.Minute,
			RetainJobs:    256,
		},
		Seed: SeedConfig{
			Regions:   []string{"Москва", "Санкт-Петербург", "Казань"},
			Executors: []string{"Иванов И.И.", "Петров П.П.", "Сидоров С.С."},
		},
	}
}

type fileConfig struct {
	HTTP struct {
		Addr        string   `toml:"addr"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"http"`
	Storage struct {
		Driver      string `toml:"driver"`
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"storage"`
	Blob struct {
		Driver string `toml:"driver"`
		FSRoot string `toml:"fs_root"`
		S3     struct {
			Bucket    string `toml:"bucket"`
			Region    string `toml:"region"`
			Endpoint  string `toml:"endpoint"`
			PathStyle bool   `toml:"path_style"`
		} `toml:"s3"`
	} `toml:"blob"`
	Log struct {
		Level   string `toml:"level"`
		Console bool   `toml:"console"`
	} `toml:"log"`
	Export struct {
		QueueSize     int    `toml:"queue_size"`
		PresignExpiry string `toml:"presign_expiry"`
		RetainJobs    int    `toml:"retain_jobs"`
	} `toml:"export"`
	Seed struct {
		Regions   []string `toml:"regions"`
		Executors []string `toml:"executors"`
	} `toml:"seed"`
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and required driver settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path required for sqlite driver")
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Export.QueueSize <= 0 {
		return fmt.Errorf("export.queue_size must be positive")
	}
	if c.Export.RetainJobs <= 0 {
		return fmt.Errorf("export.retain_jobs must be positive")
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CORSOrigins = normalizeList(raw.HTTP.CORSOrigins)
	}
	if meta.IsDefined("storage", "driver") {
		cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(raw.Storage.Driver))
	}
	if meta.IsDefined("storage", "sqlite_path") {
		cfg.Storage.SQLitePath = strings.TrimSpace(raw.Storage.SQLitePath)
	}
	if meta.IsDefined("storage", "postgres_dsn") {
		cfg.Storage.PostgresDSN = strings.TrimSpace(raw.Storage.PostgresDSN)
	}
	if meta.IsDefined("blob", "driver") {
		cfg.Blob.Driver = strings.ToLower(strings.TrimSpace(raw.Blob.Driver))
	}
	if meta.IsDefined("blob", "fs_root") {
		cfg.Blob.FSRoot = strings.TrimSpace(raw.Blob.FSRoot)
	}
	if meta.IsDefined("blob", "s3", "bucket") {
		cfg.Blob.S3.Bucket = strings.TrimSpace(raw.Blob.S3.Bucket)
	}
	if meta.IsDefined("blob", "s3", "region") {
		cfg.Blob.S3.Region = strings.TrimSpace(raw.Blob.S3.Region)
	}
	if meta.IsDefined("blob", "s3", "endpoint") {
		cfg.Blob.S3.Endpoint = strings.TrimSpace(raw.Blob.S3.Endpoint)
	}
	if meta.IsDefined("blob", "s3", "path_style") {
		cfg.Blob.S3.PathStyle = raw.Blob.S3.PathStyle
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "console") {
		cfg.Log.Console = raw.Log.Console
	}
	if meta.IsDefined("export", "queue_size") {
		cfg.Export.QueueSize = raw.Export.QueueSize
	}
	if meta.IsDefined("export", "retain_jobs") {
		cfg.Export.RetainJobs = raw.Export.RetainJobs
	}
	if meta.IsDefined("export", "presign_expiry") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Export.PresignExpiry))
		if err != nil {
			return fmt.Errorf("parse export.presign_expiry: %w", err)
		}
		cfg.Export.PresignExpiry = d
	}
	if meta.IsDefined("seed", "regions") {
		cfg.Seed.Regions = normalizeList(raw.Seed.Regions)
	}
	if meta.IsDefined("seed", "executors") {
		cfg.Seed.Executors = normalizeList(raw.Seed.Executors)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvAddr, &cfg.HTTP.Addr)
	str(EnvStorageDriver, &cfg.Storage.Driver)
	str(EnvSQLitePath, &cfg.Storage.SQLitePath)
	str(EnvPostgresDSN, &cfg.Storage.PostgresDSN)
	str(EnvBlobDriver, &cfg.Blob.Driver)
	str(EnvBlobFSRoot, &cfg.Blob.FSRoot)
	str(EnvBlobS3Bucket, &cfg.Blob.S3.Bucket)
	str(EnvBlobS3Region, &cfg.Blob.S3.Region)
	str(EnvBlobS3Endpoint, &cfg.Blob.S3.Endpoint)
	str(EnvLogLevel, &cfg.Log.Level)
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	cfg.Blob.Driver = strings.ToLower(cfg.Blob.Driver)

	if v, ok := lookup(EnvCORSOrigins); ok && strings.TrimSpace(v) != "" {
		cfg.HTTP.CORSOrigins = normalizeList(strings.Split(v, ","))
	}
	if v, ok := lookup(EnvBlobS3PathStyle); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvBlobS3PathStyle, err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	if v, ok := lookup(EnvLogConsole); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvLogConsole, err)
		}
		cfg.Log.Console = b
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
