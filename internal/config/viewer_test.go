package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyViewerConfig()

	if cfg.GetDisplayScale() != 1 {
		t.Errorf("GetDisplayScale() = %f, want 1", cfg.GetDisplayScale())
	}
	if cfg.GetMinDeltaSeconds() != 1e-6 {
		t.Errorf("GetMinDeltaSeconds() = %g, want 1e-6", cfg.GetMinDeltaSeconds())
	}
	if cfg.GetUnwrapAngles() {
		t.Error("GetUnwrapAngles() = true, want false")
	}
	if cfg.GetSeriesCapacity() != 100 {
		t.Errorf("GetSeriesCapacity() = %d, want 100", cfg.GetSeriesCapacity())
	}
	if cfg.GetCrossfadeSeconds() != 1 {
		t.Errorf("GetCrossfadeSeconds() = %f, want 1", cfg.GetCrossfadeSeconds())
	}
	if cfg.GetFrameInterval() != time.Second/60 {
		t.Errorf("GetFrameInterval() = %v, want %v", cfg.GetFrameInterval(), time.Second/60)
	}
	if cfg.GetRecordPath() != "" {
		t.Errorf("GetRecordPath() = %q, want recording disabled", cfg.GetRecordPath())
	}
	if cfg.GetFlushInterval() != time.Second {
		t.Errorf("GetFlushInterval() = %v, want 1s", cfg.GetFlushInterval())
	}
}

func TestLoadViewerConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "viewer.json")

	testJSON := `{
  "display_scale": 0.01,
  "unwrap_angles": true,
  "series_capacity": 250,
  "camera_position": [1, 2, 3],
  "idle_clip": "breathing"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadViewerConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetDisplayScale() != 0.01 {
		t.Errorf("GetDisplayScale() = %f, want 0.01", cfg.GetDisplayScale())
	}
	if !cfg.GetUnwrapAngles() {
		t.Error("GetUnwrapAngles() = false, want true")
	}
	if cfg.GetSeriesCapacity() != 250 {
		t.Errorf("GetSeriesCapacity() = %d, want 250", cfg.GetSeriesCapacity())
	}
	if cfg.GetCameraPosition() != [3]float64{1, 2, 3} {
		t.Errorf("GetCameraPosition() = %v", cfg.GetCameraPosition())
	}
	if cfg.GetIdleClip() != "breathing" {
		t.Errorf("GetIdleClip() = %q", cfg.GetIdleClip())
	}
	// unset fields keep defaults
	if cfg.GetCrossfadeSeconds() != 1 {
		t.Errorf("GetCrossfadeSeconds() = %f, want 1", cfg.GetCrossfadeSeconds())
	}
}

func TestLoadViewerConfigRejects(t *testing.T) {
	tmpDir := t.TempDir()

	cases := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"extension", "viewer.yaml", `{}`, ".json extension"},
		{"syntax", "bad.json", `{"display_scale":`, "parse"},
		{"scale", "scale.json", `{"display_scale": 0}`, "display_scale"},
		{"capacity", "cap.json", `{"series_capacity": 0}`, "series_capacity"},
		{"fov", "fov.json", `{"camera_fov_y": 180}`, "camera_fov_y"},
		{"flush", "flush.json", `{"flush_interval": "soon"}`, "flush_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tc.file)
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadViewerConfig(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("LoadViewerConfig() error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}

	if _, err := LoadViewerConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadViewerConfigTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadViewerConfig(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestDefaultsFileMatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyViewerConfig()

	if cfg.GetDisplayScale() != empty.GetDisplayScale() {
		t.Errorf("display_scale: file %f, code %f", cfg.GetDisplayScale(), empty.GetDisplayScale())
	}
	if cfg.GetMinDeltaSeconds() != empty.GetMinDeltaSeconds() {
		t.Errorf("min_delta_seconds: file %g, code %g", cfg.GetMinDeltaSeconds(), empty.GetMinDeltaSeconds())
	}
	if cfg.GetSeriesCapacity() != empty.GetSeriesCapacity() {
		t.Errorf("series_capacity: file %d, code %d", cfg.GetSeriesCapacity(), empty.GetSeriesCapacity())
	}
	if cfg.GetCrossfadeSeconds() != empty.GetCrossfadeSeconds() {
		t.Errorf("crossfade_seconds: file %f, code %f", cfg.GetCrossfadeSeconds(), empty.GetCrossfadeSeconds())
	}
	if cfg.GetFrameRate() != empty.GetFrameRate() {
		t.Errorf("frame_rate: file %f, code %f", cfg.GetFrameRate(), empty.GetFrameRate())
	}
	if cfg.GetCameraPosition() != empty.GetCameraPosition() {
		t.Errorf("camera_position: file %v, code %v", cfg.GetCameraPosition(), empty.GetCameraPosition())
	}
	if cfg.GetListen() != empty.GetListen() || cfg.GetGRPCListen() != empty.GetGRPCListen() {
		t.Errorf("listen addresses differ between file and code")
	}
}
