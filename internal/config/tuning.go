package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Foreground segmentation modes understood by the contour detector.
const (
	ForegroundDark  = "dark"
	ForegroundLight = "light"
	ForegroundColor = "color"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// TuningConfig represents the root configuration for alignment tuning.
// Every field is optional; the Get* accessors supply defaults for
// anything the JSON leaves out.
type TuningConfig struct {
	// Calibration params
	MaxConditionNumber *float64 `json:"max_condition_number,omitempty"`

	// Pose estimator params
	MinConfidence      *float64 `json:"min_confidence,omitempty"`
	SearchRadiusFactor *float64 `json:"search_radius_factor,omitempty"`
	MinSearchRadiusPx  *int     `json:"min_search_radius_px,omitempty"`
	ForegroundMode     *string  `json:"foreground_mode,omitempty"` // dark, light or color
	ThresholdLevel     *int     `json:"threshold_level,omitempty"` // 0-255 luminance
	MarkerColor        *string  `json:"marker_color,omitempty"`    // "#rrggbb" for color mode
	ColorDistance      *float64 `json:"color_distance,omitempty"`  // Lab distance for color mode
	BlurSigma          *float64 `json:"blur_sigma,omitempty"`
	MinBlobAreaPx      *int     `json:"min_blob_area_px,omitempty"`
	MaxBlobFraction    *float64 `json:"max_blob_fraction,omitempty"`
	BorderPenalty      *float64 `json:"border_penalty,omitempty"`
	TemplateCoarseStep *int     `json:"template_coarse_step,omitempty"`

	// Alignment engine params
	MaxMisses            *int     `json:"max_misses,omitempty"`
	SmoothingAlpha       *float64 `json:"smoothing_alpha,omitempty"`
	ToleranceX           *float64 `json:"tolerance_x,omitempty"`
	ToleranceY           *float64 `json:"tolerance_y,omitempty"`
	ToleranceScale       *float64 `json:"tolerance_scale,omitempty"`
	ToleranceRotationDeg *float64 `json:"tolerance_rotation_deg,omitempty"`

	// Pipeline params
	MaxFrameAge *string `json:"max_frame_age,omitempty"` // duration string like "250ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the Get* defaults. Useful for writing a starting config file.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		MaxConditionNumber:   ptrFloat64(e.GetMaxConditionNumber()),
		MinConfidence:        ptrFloat64(e.GetMinConfidence()),
		SearchRadiusFactor:   ptrFloat64(e.GetSearchRadiusFactor()),
		MinSearchRadiusPx:    ptrInt(e.GetMinSearchRadiusPx()),
		ForegroundMode:       ptrString(e.GetForegroundMode()),
		ThresholdLevel:       ptrInt(e.GetThresholdLevel()),
		MarkerColor:          ptrString(e.GetMarkerColor()),
		ColorDistance:        ptrFloat64(e.GetColorDistance()),
		BlurSigma:            ptrFloat64(e.GetBlurSigma()),
		MinBlobAreaPx:        ptrInt(e.GetMinBlobAreaPx()),
		MaxBlobFraction:      ptrFloat64(e.GetMaxBlobFraction()),
		BorderPenalty:        ptrFloat64(e.GetBorderPenalty()),
		TemplateCoarseStep:   ptrInt(e.GetTemplateCoarseStep()),
		MaxMisses:            ptrInt(e.GetMaxMisses()),
		SmoothingAlpha:       ptrFloat64(e.GetSmoothingAlpha()),
		ToleranceX:           ptrFloat64(e.GetToleranceX()),
		ToleranceY:           ptrFloat64(e.GetToleranceY()),
		ToleranceScale:       ptrFloat64(e.GetToleranceScale()),
		ToleranceRotationDeg: ptrFloat64(e.GetToleranceRotationDeg()),
		MaxFrameAge:          ptrString(e.GetMaxFrameAge().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/align/l5guidance/
		"../../../../" + DefaultConfigPath, // from internal/align/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxConditionNumber != nil && !(*c.MaxConditionNumber > 1) {
		return fmt.Errorf("max_condition_number must be greater than 1, got %g", *c.MaxConditionNumber)
	}
	if err := checkUnit("min_confidence", c.MinConfidence); err != nil {
		return err
	}
	if c.SearchRadiusFactor != nil && *c.SearchRadiusFactor <= 0 {
		return fmt.Errorf("search_radius_factor must be positive, got %f", *c.SearchRadiusFactor)
	}
	if c.MinSearchRadiusPx != nil && *c.MinSearchRadiusPx < 1 {
		return fmt.Errorf("min_search_radius_px must be at least 1, got %d", *c.MinSearchRadiusPx)
	}
	if c.ForegroundMode != nil {
		switch *c.ForegroundMode {
		case ForegroundDark, ForegroundLight, ForegroundColor:
		default:
			return fmt.Errorf("foreground_mode must be one of dark, light, color; got %q", *c.ForegroundMode)
		}
	}
	if c.ThresholdLevel != nil && (*c.ThresholdLevel < 0 || *c.ThresholdLevel > 255) {
		return fmt.Errorf("threshold_level must be between 0 and 255, got %d", *c.ThresholdLevel)
	}
	if c.MarkerColor != nil && !hexColorRe.MatchString(*c.MarkerColor) {
		return fmt.Errorf("marker_color must look like #rrggbb, got %q", *c.MarkerColor)
	}
	if c.ColorDistance != nil && *c.ColorDistance <= 0 {
		return fmt.Errorf("color_distance must be positive, got %f", *c.ColorDistance)
	}
	if c.BlurSigma != nil && *c.BlurSigma < 0 {
		return fmt.Errorf("blur_sigma must be non-negative, got %f", *c.BlurSigma)
	}
	if c.MinBlobAreaPx != nil && *c.MinBlobAreaPx < 1 {
		return fmt.Errorf("min_blob_area_px must be at least 1, got %d", *c.MinBlobAreaPx)
	}
	if err := checkUnit("max_blob_fraction", c.MaxBlobFraction); err != nil {
		return err
	}
	if err := checkUnit("border_penalty", c.BorderPenalty); err != nil {
		return err
	}
	if c.TemplateCoarseStep != nil && *c.TemplateCoarseStep < 1 {
		return fmt.Errorf("template_coarse_step must be at least 1, got %d", *c.TemplateCoarseStep)
	}
	if c.MaxMisses != nil && *c.MaxMisses < 1 {
		return fmt.Errorf("max_misses must be at least 1, got %d", *c.MaxMisses)
	}
	if c.SmoothingAlpha != nil && (*c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1) {
		return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", *c.SmoothingAlpha)
	}
	for name, v := range map[string]*float64{
		"tolerance_x":            c.ToleranceX,
		"tolerance_y":            c.ToleranceY,
		"tolerance_scale":        c.ToleranceScale,
		"tolerance_rotation_deg": c.ToleranceRotationDeg,
	} {
		if v != nil && (!(*v >= 0) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be a non-negative finite number, got %f", name, *v)
		}
	}
	if c.MaxFrameAge != nil && *c.MaxFrameAge != "" {
		if _, err := time.ParseDuration(*c.MaxFrameAge); err != nil {
			return fmt.Errorf("invalid max_frame_age '%s': %w", *c.MaxFrameAge, err)
		}
	}
	return nil
}

func checkUnit(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
	}
	return nil
}

// GetMaxConditionNumber returns the max_condition_number value or the default.
func (c *TuningConfig) GetMaxConditionNumber() float64 {
	if c.MaxConditionNumber == nil {
		return 1e9 // default
	}
	return *c.MaxConditionNumber
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.5 // default
	}
	return *c.MinConfidence
}

// GetSearchRadiusFactor returns the search_radius_factor value or the default.
func (c *TuningConfig) GetSearchRadiusFactor() float64 {
	if c.SearchRadiusFactor == nil {
		return 1.5 // default
	}
	return *c.SearchRadiusFactor
}

// GetMinSearchRadiusPx returns the min_search_radius_px value or the default.
func (c *TuningConfig) GetMinSearchRadiusPx() int {
	if c.MinSearchRadiusPx == nil {
		return 32 // default
	}
	return *c.MinSearchRadiusPx
}

// GetForegroundMode returns the foreground_mode value or the default.
func (c *TuningConfig) GetForegroundMode() string {
	if c.ForegroundMode == nil || *c.ForegroundMode == "" {
		return ForegroundDark // default
	}
	return *c.ForegroundMode
}

// GetThresholdLevel returns the threshold_level value or the default.
func (c *TuningConfig) GetThresholdLevel() int {
	if c.ThresholdLevel == nil {
		return 128 // default
	}
	return *c.ThresholdLevel
}

// GetMarkerColor returns the marker_color value or the default.
func (c *TuningConfig) GetMarkerColor() string {
	if c.MarkerColor == nil || *c.MarkerColor == "" {
		return "#ff00ff" // default
	}
	return *c.MarkerColor
}

// GetColorDistance returns the color_distance value or the default.
func (c *TuningConfig) GetColorDistance() float64 {
	if c.ColorDistance == nil {
		return 0.25 // default
	}
	return *c.ColorDistance
}

// GetBlurSigma returns the blur_sigma value or the default.
func (c *TuningConfig) GetBlurSigma() float64 {
	if c.BlurSigma == nil {
		return 1.0 // default
	}
	return *c.BlurSigma
}

// GetMinBlobAreaPx returns the min_blob_area_px value or the default.
func (c *TuningConfig) GetMinBlobAreaPx() int {
	if c.MinBlobAreaPx == nil {
		return 64 // default
	}
	return *c.MinBlobAreaPx
}

// GetMaxBlobFraction returns the max_blob_fraction value or the default.
func (c *TuningConfig) GetMaxBlobFraction() float64 {
	if c.MaxBlobFraction == nil {
		return 0.9 // default
	}
	return *c.MaxBlobFraction
}

// GetBorderPenalty returns the border_penalty value or the default.
func (c *TuningConfig) GetBorderPenalty() float64 {
	if c.BorderPenalty == nil {
		return 0.6 // default
	}
	return *c.BorderPenalty
}

// GetTemplateCoarseStep returns the template_coarse_step value or the default.
func (c *TuningConfig) GetTemplateCoarseStep() int {
	if c.TemplateCoarseStep == nil {
		return 4 // default
	}
	return *c.TemplateCoarseStep
}

// GetMaxMisses returns the max_misses value or the default.
func (c *TuningConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 5 // default
	}
	return *c.MaxMisses
}

// GetSmoothingAlpha returns the smoothing_alpha value or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 0.4 // default
	}
	return *c.SmoothingAlpha
}

// GetToleranceX returns the tolerance_x value (planning units) or the default.
func (c *TuningConfig) GetToleranceX() float64 {
	if c.ToleranceX == nil {
		return 10 // default
	}
	return *c.ToleranceX
}

// GetToleranceY returns the tolerance_y value (planning units) or the default.
func (c *TuningConfig) GetToleranceY() float64 {
	if c.ToleranceY == nil {
		return 10 // default
	}
	return *c.ToleranceY
}

// GetToleranceScale returns the tolerance_scale value or the default.
func (c *TuningConfig) GetToleranceScale() float64 {
	if c.ToleranceScale == nil {
		return 0.05 // default
	}
	return *c.ToleranceScale
}

// GetToleranceRotationDeg returns the tolerance_rotation_deg value or the default.
func (c *TuningConfig) GetToleranceRotationDeg() float64 {
	if c.ToleranceRotationDeg == nil {
		return 2 // default
	}
	return *c.ToleranceRotationDeg
}

// GetMaxFrameAge parses and returns MaxFrameAge as a time.Duration.
// Zero disables the staleness check.
func (c *TuningConfig) GetMaxFrameAge() time.Duration {
	if c.MaxFrameAge == nil || *c.MaxFrameAge == "" {
		return 250 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.MaxFrameAge)
	if err != nil {
		return 250 * time.Millisecond // default on parse error
	}
	return d
}
