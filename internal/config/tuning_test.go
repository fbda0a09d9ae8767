package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.MinConfidence == nil || *cfg.MinConfidence != 0.5 {
		t.Errorf("Expected MinConfidence 0.5, got %v", cfg.MinConfidence)
	}
	if cfg.MaxMisses == nil || *cfg.MaxMisses != 5 {
		t.Errorf("Expected MaxMisses 5, got %v", cfg.MaxMisses)
	}
	if cfg.MaxFrameAge == nil || *cfg.MaxFrameAge != "250ms" {
		t.Errorf("Expected MaxFrameAge '250ms', got %v", cfg.MaxFrameAge)
	}
	if cfg.ForegroundMode == nil || *cfg.ForegroundMode != ForegroundDark {
		t.Errorf("Expected ForegroundMode dark, got %v", cfg.ForegroundMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetMaxConditionNumber() != 1e9 {
		t.Errorf("GetMaxConditionNumber() = %g, want 1e9", cfg.GetMaxConditionNumber())
	}
	if cfg.GetSmoothingAlpha() != 0.4 {
		t.Errorf("GetSmoothingAlpha() = %f, want 0.4", cfg.GetSmoothingAlpha())
	}
	if cfg.GetToleranceX() != 10 || cfg.GetToleranceY() != 10 {
		t.Errorf("translation tolerances = %f,%f, want 10,10", cfg.GetToleranceX(), cfg.GetToleranceY())
	}
	if cfg.GetMaxFrameAge() != 250*time.Millisecond {
		t.Errorf("GetMaxFrameAge() = %v, want 250ms", cfg.GetMaxFrameAge())
	}

	bad := "soon"
	cfg.MaxFrameAge = &bad
	if cfg.GetMaxFrameAge() != 250*time.Millisecond {
		t.Errorf("GetMaxFrameAge() with bad value = %v, want default", cfg.GetMaxFrameAge())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "min_confidence": 0.7,
  "max_misses": 8,
  "foreground_mode": "color",
  "marker_color": "#00ff00",
  "max_frame_age": "100ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMinConfidence() != 0.7 {
		t.Errorf("GetMinConfidence() = %f, want 0.7", cfg.GetMinConfidence())
	}
	if cfg.GetMaxMisses() != 8 {
		t.Errorf("GetMaxMisses() = %d, want 8", cfg.GetMaxMisses())
	}
	if cfg.GetForegroundMode() != ForegroundColor {
		t.Errorf("GetForegroundMode() = %q, want color", cfg.GetForegroundMode())
	}
	if cfg.GetMaxFrameAge() != 100*time.Millisecond {
		t.Errorf("GetMaxFrameAge() = %v, want 100ms", cfg.GetMaxFrameAge())
	}
	// Omitted fields fall back to defaults
	if cfg.GetToleranceRotationDeg() != 2 {
		t.Errorf("GetToleranceRotationDeg() = %f, want 2", cfg.GetToleranceRotationDeg())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("cfg.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "nope.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse"},
		{"out of range confidence", write("conf.json", `{"min_confidence": 1.5}`), "min_confidence"},
		{"bad foreground mode", write("mode.json", `{"foreground_mode": "sepia"}`), "foreground_mode"},
		{"bad marker color", write("color.json", `{"marker_color": "red"}`), "marker_color"},
		{"zero misses", write("misses.json", `{"max_misses": 0}`), "max_misses"},
		{"bad alpha", write("alpha.json", `{"smoothing_alpha": 0}`), "smoothing_alpha"},
		{"negative tolerance", write("tol.json", `{"tolerance_y": -1}`), "tolerance_y"},
		{"bad duration", write("age.json", `{"max_frame_age": "later"}`), "max_frame_age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "huge.json")
	if err := os.WriteFile(p, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	def := DefaultTuningConfig()

	if cfg.GetMinConfidence() != def.GetMinConfidence() {
		t.Errorf("defaults file min_confidence = %f, code default = %f", cfg.GetMinConfidence(), def.GetMinConfidence())
	}
	if cfg.GetMaxMisses() != def.GetMaxMisses() {
		t.Errorf("defaults file max_misses = %d, code default = %d", cfg.GetMaxMisses(), def.GetMaxMisses())
	}
	if cfg.GetMaxFrameAge() != def.GetMaxFrameAge() {
		t.Errorf("defaults file max_frame_age = %v, code default = %v", cfg.GetMaxFrameAge(), def.GetMaxFrameAge())
	}
}
