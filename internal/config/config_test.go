package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsweep/opsweep/internal/domain/decommission"
	"github.com/opsweep/opsweep/internal/domain/resource"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != "filesystem" {
		t.Errorf("store backend = %s, want filesystem", cfg.Store.Backend)
	}
	if cfg.Run.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Run.Concurrency)
	}
	if !cfg.Run.PreserveData {
		t.Error("preserve-data should default to true")
	}
	if cfg.Run.PollInterval != 30*time.Second {
		t.Errorf("poll interval = %s, want 30s", cfg.Run.PollInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPSWEEP_CONCURRENCY", "8")
	t.Setenv("OPSWEEP_PRESERVE_DATA", "false")
	t.Setenv("OPSWEEP_MAX_WAIT", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Run.Concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", cfg.Run.Concurrency)
	}
	if cfg.Run.PreserveData {
		t.Error("preserve-data override not applied")
	}
	if cfg.Run.MaxWait != 5*time.Minute {
		t.Errorf("max wait = %s, want 5m", cfg.Run.MaxWait)
	}
}

func TestLoadInvalidBackend(t *testing.T) {
	t.Setenv("OPSWEEP_STORE_BACKEND", "ftp")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported store backend")
	}
}

func TestLoadS3RequiresBucket(t *testing.T) {
	t.Setenv("OPSWEEP_STORE_BACKEND", "s3")
	t.Setenv("OPSWEEP_STORE_BUCKET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for s3 backend without bucket")
	}
}

func TestDefaultTiers(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	dev := cfg.AllowList(decommission.TierDevelopment)
	if len(dev) != len(resource.AllTypes()) {
		t.Errorf("development allow-list has %d types, want all %d", len(dev), len(resource.AllTypes()))
	}

	// Production selects nothing unless a tiers file says otherwise.
	if got := cfg.AllowList(decommission.TierProduction); len(got) != 0 {
		t.Errorf("production allow-list = %v, want empty", got)
	}

	if got := cfg.AllowList(decommission.Tier("qa")); got != nil {
		t.Errorf("unknown tier allow-list = %v, want nil", got)
	}
}

func TestTiersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	content := []byte(`
production:
  allow_types:
    - virtual-machine
  preserve_data: true
staging:
  allow_types:
    - compute-cluster
  preserve_data: false
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPSWEEP_TIERS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	prod := cfg.AllowList(decommission.TierProduction)
	if len(prod) != 1 || prod[0] != resource.TypeVirtualMachine {
		t.Errorf("production allow-list = %v", prod)
	}

	policy := cfg.PolicyFor(decommission.TierStaging)
	if policy.PreserveData {
		t.Error("staging preserve_data override not applied")
	}
	if policy.Tier != decommission.TierStaging {
		t.Errorf("policy tier = %s", policy.Tier)
	}
}

func TestTiersFileUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	content := []byte("development:\n  allow_types:\n    - mainframe\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPSWEEP_TIERS_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown resource type in tiers file")
	}
}
