package config

import (
	"os"
	"path/filepath"
	"testing"

	"qrdrive/internal/layout"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qrdrive.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Preset != layout.PresetPNG || cfg.Strength != "L" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	plan, err := cfg.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.Unconstrained() {
		t.Fatalf("png preset should be unconstrained: %+v", plan)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
preset = "letter"
error_correction = "M"
compress = true
chunk_bytes = 500

[layout]
border_modules = 2
columns = 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Compress || cfg.ChunkBytes != 500 {
		t.Fatalf("overlay missing: %+v", cfg)
	}
	if cfg.FillColor != "black" {
		t.Fatalf("untouched default lost: %+v", cfg)
	}
	plan, err := cfg.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Columns != 3 || plan.BorderModules != 2 {
		t.Fatalf("layout overrides not applied: %+v", plan)
	}
	if plan.Strength != layout.StrengthM {
		t.Fatalf("strength not parsed: %v", plan.Strength)
	}
	if plan.PageWidth != 8.5 {
		t.Fatalf("preset geometry lost: %+v", plan)
	}
}

func TestLoadRejectsBadStrength(t *testing.T) {
	path := writeConfig(t, `error_correction = "Z"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown strength")
	}
}

func TestLoadRejectsBadTextSide(t *testing.T) {
	path := writeConfig(t, `
[layout]
text_side = "diagonal"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad text_side")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPlanRejectsUnknownPreset(t *testing.T) {
	cfg := Default()
	cfg.Preset = "napkin"
	if _, err := cfg.Plan(); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
