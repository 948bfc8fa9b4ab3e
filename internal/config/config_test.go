package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Test.Users != 10 {
		t.Errorf("Users = %d, want 10", cfg.Test.Users)
	}
	if cfg.Test.MetricsInterval.Duration != time.Second {
		t.Errorf("MetricsInterval = %v, want 1s", cfg.Test.MetricsInterval.Duration)
	}
	if !cfg.Dashboard.Enabled || cfg.Dashboard.Addr != ":8089" {
		t.Errorf("Dashboard = %+v", cfg.Dashboard)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Test.Users != Default().Test.Users {
		t.Errorf("Users = %d, want default", cfg.Test.Users)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surge.toml")
	plan := `
[test]
users = 200
ramp_up = "30s"
duration = "5m"
pool_size = 40
pool_mode = "bounded_workers"

[target]
base_url = "http://localhost:9000"
feed_csv = "users.csv"

[dashboard]
enabled = false

[report]
html_path = "out/report.html"

[observer]
enabled = true
`
	if err := os.WriteFile(path, []byte(plan), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Test.Users != 200 {
		t.Errorf("Users = %d, want 200", cfg.Test.Users)
	}
	if cfg.Test.RampUp.Duration != 30*time.Second {
		t.Errorf("RampUp = %v, want 30s", cfg.Test.RampUp.Duration)
	}
	if cfg.Test.Duration.Duration != 5*time.Minute {
		t.Errorf("Duration = %v, want 5m", cfg.Test.Duration.Duration)
	}
	if cfg.Test.PoolMode != "bounded_workers" {
		t.Errorf("PoolMode = %q", cfg.Test.PoolMode)
	}
	if cfg.Target.BaseURL != "http://localhost:9000" {
		t.Errorf("BaseURL = %q", cfg.Target.BaseURL)
	}
	if cfg.Dashboard.Enabled {
		t.Error("Dashboard.Enabled = true, want overridden to false")
	}
	// A key the plan does not set keeps its default.
	if cfg.Test.MetricsInterval.Duration != time.Second {
		t.Errorf("MetricsInterval = %v, want default 1s", cfg.Test.MetricsInterval.Duration)
	}
	if !cfg.Observer.Enabled {
		t.Error("Observer.Enabled = false, want true")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surge.toml")
	if err := os.WriteFile(path, []byte("users = [unclosed"), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
