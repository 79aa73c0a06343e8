package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	yaml := `
generation:
  base_url: "http://localhost:3000"
  concurrent_limit: 5
audio:
  min_clip_sec: 45
upload:
  category_id: "10"
  visibility: "private"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.BaseURL != "http://localhost:3000" {
		t.Errorf("base_url = %q", cfg.Generation.BaseURL)
	}
	if cfg.Generation.ConcurrentLimit != 5 {
		t.Errorf("concurrent_limit = %d, want 5", cfg.Generation.ConcurrentLimit)
	}
	if cfg.Audio.MinClipSec != 45 {
		t.Errorf("min_clip_sec = %v, want 45", cfg.Audio.MinClipSec)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.ConcurrentLimit != 3 {
		t.Errorf("default concurrent_limit = %d, want 3", cfg.Generation.ConcurrentLimit)
	}
	if cfg.Generation.PollAttempts != 30 {
		t.Errorf("default poll_attempts = %d, want 30", cfg.Generation.PollAttempts)
	}
	if cfg.Audio.TargetLoudnessDB != -14 {
		t.Errorf("default target loudness = %v, want -14", cfg.Audio.TargetLoudnessDB)
	}
	if cfg.Video.Height != 720 || cfg.Video.FPS != 24 {
		t.Errorf("default video = %dp/%dfps, want 720p/24fps", cfg.Video.Height, cfg.Video.FPS)
	}
	if cfg.Paths.Output != "Output" {
		t.Errorf("default output = %q, want Output", cfg.Paths.Output)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
