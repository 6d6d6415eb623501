package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protocoldesk.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Seed.Regions) != 3 || cfg.Seed.Executors[0] != "Иванов И.И." {
		t.Fatalf("unexpected seed defaults: %+v", cfg.Seed)
	}
}

func TestLoadFileOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeFile(t, `
[storage]
driver = "memory"

[blob.s3]
region = "eu-central-1"

[export]
presign_expiry = "2m"
retain_jobs = 10

[seed]
regions = ["Тула", " ", "Омск"]
`)
	t.Setenv(EnvStorageDriver, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageMemory {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.SQLitePath != Default().Storage.SQLitePath {
		t.Fatalf("undefined key should keep default, got %q", cfg.Storage.SQLitePath)
	}
	if cfg.Blob.S3.Region != "eu-central-1" || cfg.Export.PresignExpiry != 2*time.Minute || cfg.Export.RetainJobs != 10 {
		t.Fatalf("blob/export = %+v %+v", cfg.Blob, cfg.Export)
	}
	if !slices.Equal(cfg.Seed.Regions, []string{"Тула", "Омск"}) {
		t.Fatalf("regions = %v", cfg.Seed.Regions)
	}
	if len(cfg.Seed.Executors) != 3 {
		t.Fatalf("executors should keep defaults")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[http]\naddr = \":9000\"\n")
	t.Setenv(EnvAddr, ":9100")
	t.Setenv(EnvCORSOrigins, "http://a.local, http://b.local")
	t.Setenv(EnvBlobS3PathStyle, "true")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9100" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if !slices.Equal(cfg.HTTP.CORSOrigins, []string{"http://a.local", "http://b.local"}) {
		t.Fatalf("origins = %v", cfg.HTTP.CORSOrigins)
	}
	if !cfg.Blob.S3.PathStyle {
		t.Fatalf("path style not applied")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv(EnvStorageDriver, "oracle")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	t.Setenv(EnvStorageDriver, "postgres")
	t.Setenv(EnvPostgresDSN, "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected missing dsn error")
	}
	t.Setenv(EnvStorageDriver, "memory")
	t.Setenv(EnvBlobDriver, "s3")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	t.Setenv(EnvBlobDriver, "memory")
	t.Setenv(EnvLogConsole, "maybe")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected bool parse error")
	}
	if _, err := Load(writeFile(t, "[export]\npresign_expiry = \"soon\"\n")); err == nil {
		t.Fatalf("expected duration parse error")
	}
}
