package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gridshift/carbonsched/core/model"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
regions:
  - scotland
  - london
planner:
  weights:
    carbon: 0.5
    cost: 0.4
    deadline: 0.1
  horizon_hours: 24
cache:
  ttl_seconds: 900
audit:
  backend: sqlite
  path: decisions.db
catalog:
  provider_id: gridshift-test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Regions) != 2 || cfg.Regions[0] != model.RegionScotland {
		t.Fatalf("regions = %v", cfg.Regions)
	}
	if cfg.Planner.Weights.Carbon != 0.5 || cfg.Planner.HorizonHours != 24 {
		t.Fatalf("planner = %+v", cfg.Planner)
	}
	if cfg.Cache.TTLSeconds != 900 {
		t.Fatalf("cache ttl = %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Audit.Backend != "sqlite" || cfg.Audit.Path != "decisions.db" {
		t.Fatalf("audit = %+v", cfg.Audit)
	}
	if cfg.Catalog.ProviderID != "gridshift-test" {
		t.Fatalf("catalog = %+v", cfg.Catalog)
	}
}

func TestLoadJSONWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Regions) != 17 {
		t.Fatalf("default regions = %d, want all 17", len(cfg.Regions))
	}
	w := cfg.Planner.Weights
	if w.Carbon != 0.6 || w.Cost != 0.3 || w.Deadline != 0.1 {
		t.Fatalf("default weights = %+v", w)
	}
	if cfg.Cache.TTLSeconds != 1800 {
		t.Fatalf("default ttl = %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Audit.Backend != "jsonl" {
		t.Fatalf("default audit backend = %s", cfg.Audit.Backend)
	}
	if cfg.Generator.BaseIntensity != 250 || cfg.Generator.BasePrice != 0.15 {
		t.Fatalf("default generator = %+v", cfg.Generator)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_PLANNER__HORIZON_HOURS", "12")
	t.Setenv("K_CACHE__TTL_SECONDS", "600")
	path := writeConfig(t, "config.yaml", `
planner:
  horizon_hours: 48
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Planner.HorizonHours != 12 {
		t.Fatalf("horizon = %d, want env override 12", cfg.Planner.HorizonHours)
	}
	if cfg.Cache.TTLSeconds != 600 {
		t.Fatalf("ttl = %d, want env override 600", cfg.Cache.TTLSeconds)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown region", "regions:\n  - atlantis\n"},
		{"bad weights", "planner:\n  weights:\n    carbon: 0.9\n    cost: 0.9\n    deadline: 0.1\n"},
		{"bad audit backend", "audit:\n  backend: parquet\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "config.yaml", tc.content)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestAuditOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"memory", "jsonl", "sqlite"} {
		cfg := AuditConfig{Backend: backend, Path: filepath.Join(dir, backend+".db")}
		st, err := cfg.OpenStore()
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("%s close: %v", backend, err)
		}
	}
	if _, err := (AuditConfig{Backend: "parquet"}).OpenStore(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
