package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.K != 12 || cfg.BPlan != 60_000 || cfg.BContext != 48_000 {
		t.Errorf("defaults not applied: k=%d b_plan=%d b_context=%d", cfg.K, cfg.BPlan, cfg.BContext)
	}
	if cfg.Model != "gemini-2.5-flash" {
		t.Errorf("default model = %q", cfg.Model)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spoon.yaml")
	content := "k: 6\nplanner_timeout: 30s\ndb_path: /tmp/spoon.db\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.K != 6 {
		t.Errorf("k = %d, want 6", cfg.K)
	}
	if cfg.PlannerTimeout.Std() != 30*time.Second {
		t.Errorf("planner_timeout = %v, want 30s", cfg.PlannerTimeout.Std())
	}
	if cfg.DBPath != "/tmp/spoon.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	// Untouched keys keep their defaults.
	if cfg.BContext != 48_000 {
		t.Errorf("b_context = %d, want default", cfg.BContext)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spoon.yaml")
	if err := os.WriteFile(path, []byte("gemini_api_key: from-file\nmodel: from-file-model\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("SPOON_MODEL", "from-env-model")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GeminiAPIKey != "from-env" {
		t.Errorf("gemini_api_key = %q, want env override", cfg.GeminiAPIKey)
	}
	if cfg.Model != "from-env-model" {
		t.Errorf("model = %q, want env override", cfg.Model)
	}
}

func TestLoadRejectsBadBudgets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spoon.yaml")
	if err := os.WriteFile(path, []byte("k: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for negative k")
	}
}
