package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return path
}

func TestLoadAppliesFileValuesOverDefaults(t *testing.T) {
	path := writeTOML(t, `
frame_period = "100ms"
max_clients = 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FramePeriod != 100*time.Millisecond {
		t.Errorf("frame_period = %v, want 100ms", cfg.FramePeriod)
	}
	if cfg.MaxClients != 4 {
		t.Errorf("max_clients = %d, want 4", cfg.MaxClients)
	}
	// Untouched fields keep Default()'s values.
	if cfg.GracePeriod != Default().GracePeriod {
		t.Errorf("grace_period = %v, want default %v", cfg.GracePeriod, Default().GracePeriod)
	}
}

func TestEnvOverridesOnlyUnsetFields(t *testing.T) {
	path := writeTOML(t, `frame_period = "100ms"`)

	t.Setenv("LOCKSTEP_FRAME_PERIOD", "200ms")
	t.Setenv("LOCKSTEP_MAX_CLIENTS", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FramePeriod != 100*time.Millisecond {
		t.Errorf("frame_period = %v, want file value 100ms (file should win over env)", cfg.FramePeriod)
	}
	if cfg.MaxClients != 8 {
		t.Errorf("max_clients = %d, want env override 8", cfg.MaxClients)
	}
}

func TestValidateRejectsNonPositiveFramePeriod(t *testing.T) {
	cfg := Default()
	cfg.FramePeriod = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero frame_period")
	}
}
