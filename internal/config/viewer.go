package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical viewer defaults file.
const DefaultConfigPath = "config/viewer.defaults.json"

// ViewerConfig is the root configuration for the viewer process. Every
// field is optional; the Get* methods supply the default for a missing
// field, so partial files are safe.
type ViewerConfig struct {
	// Tracking
	DisplayScale    *float64 `json:"display_scale,omitempty"`
	MinDeltaSeconds *float64 `json:"min_delta_seconds,omitempty"`
	UnwrapAngles    *bool    `json:"unwrap_angles,omitempty"`
	SeriesCapacity  *int     `json:"series_capacity,omitempty"`

	// Playback
	CrossfadeSeconds *float64 `json:"crossfade_seconds,omitempty"`
	IdleClip         *string  `json:"idle_clip,omitempty"`
	FrameRate        *float64 `json:"frame_rate,omitempty"`

	// Camera and viewport used to turn dashboard clicks into rays
	CameraPosition *[3]float64 `json:"camera_position,omitempty"`
	CameraTarget   *[3]float64 `json:"camera_target,omitempty"`
	CameraFovY     *float64    `json:"camera_fov_y,omitempty"`
	ViewportX      *float64    `json:"viewport_x,omitempty"` // side panel width
	ViewportWidth  *float64    `json:"viewport_width,omitempty"`
	ViewportHeight *float64    `json:"viewport_height,omitempty"`
	GroundHalfSize *float64    `json:"ground_half_size,omitempty"` // 0 disables the ground prop

	// Outputs
	Listen        *string `json:"listen,omitempty"`
	GRPCListen    *string `json:"grpc_listen,omitempty"`
	RecordPath    *string `json:"record_path,omitempty"` // empty disables recording
	FlushInterval *string `json:"flush_interval,omitempty"`
}

// EmptyViewerConfig returns a config with every field unset.
func EmptyViewerConfig() *ViewerConfig {
	return &ViewerConfig{}
}

// LoadViewerConfig loads a ViewerConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
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

	cfg := EmptyViewerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or a parent. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *ViewerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/figure/viewer/
		"../../../../" + DefaultConfigPath, // from internal/figure/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadViewerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are usable.
func (c *ViewerConfig) Validate() error {
	if c.DisplayScale != nil && *c.DisplayScale <= 0 {
		return fmt.Errorf("display_scale must be positive, got %f", *c.DisplayScale)
	}
	if c.MinDeltaSeconds != nil && *c.MinDeltaSeconds < 0 {
		return fmt.Errorf("min_delta_seconds must be non-negative, got %g", *c.MinDeltaSeconds)
	}
	if c.SeriesCapacity != nil && *c.SeriesCapacity < 1 {
		return fmt.Errorf("series_capacity must be at least 1, got %d", *c.SeriesCapacity)
	}
	if c.CrossfadeSeconds != nil && *c.CrossfadeSeconds < 0 {
		return fmt.Errorf("crossfade_seconds must be non-negative, got %f", *c.CrossfadeSeconds)
	}
	if c.FrameRate != nil && (*c.FrameRate <= 0 || *c.FrameRate > 1000) {
		return fmt.Errorf("frame_rate must be in (0, 1000], got %f", *c.FrameRate)
	}
	if c.CameraFovY != nil && (*c.CameraFovY <= 0 || *c.CameraFovY >= 180) {
		return fmt.Errorf("camera_fov_y must be in (0, 180), got %f", *c.CameraFovY)
	}
	if c.ViewportWidth != nil && *c.ViewportWidth <= 0 {
		return fmt.Errorf("viewport_width must be positive, got %f", *c.ViewportWidth)
	}
	if c.ViewportHeight != nil && *c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport_height must be positive, got %f", *c.ViewportHeight)
	}
	if c.GroundHalfSize != nil && *c.GroundHalfSize < 0 {
		return fmt.Errorf("ground_half_size must be non-negative, got %f", *c.GroundHalfSize)
	}
	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}
	return nil
}

// GetDisplayScale returns the display_scale value or the default.
func (c *ViewerConfig) GetDisplayScale() float64 {
	if c.DisplayScale == nil {
		return 1
	}
	return *c.DisplayScale
}

// GetMinDeltaSeconds returns the min_delta_seconds value or the default.
func (c *ViewerConfig) GetMinDeltaSeconds() float64 {
	if c.MinDeltaSeconds == nil {
		return 1e-6
	}
	return *c.MinDeltaSeconds
}

// GetUnwrapAngles returns the unwrap_angles value or the default.
func (c *ViewerConfig) GetUnwrapAngles() bool {
	if c.UnwrapAngles == nil {
		return false
	}
	return *c.UnwrapAngles
}

// GetSeriesCapacity returns the series_capacity value or the default.
func (c *ViewerConfig) GetSeriesCapacity() int {
	if c.SeriesCapacity == nil {
		return 100
	}
	return *c.SeriesCapacity
}

// GetCrossfadeSeconds returns the crossfade_seconds value or the default.
func (c *ViewerConfig) GetCrossfadeSeconds() float64 {
	if c.CrossfadeSeconds == nil {
		return 1
	}
	return *c.CrossfadeSeconds
}

// GetIdleClip returns the idle_clip value or the default.
func (c *ViewerConfig) GetIdleClip() string {
	if c.IdleClip == nil {
		return "idle"
	}
	return *c.IdleClip
}

// GetFrameRate returns the frame_rate value or the default.
func (c *ViewerConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 60
	}
	return *c.FrameRate
}

// GetFrameInterval is the tick period derived from the frame rate.
func (c *ViewerConfig) GetFrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.GetFrameRate())
}

// GetCameraPosition returns the camera_position value or the default.
func (c *ViewerConfig) GetCameraPosition() [3]float64 {
	if c.CameraPosition == nil {
		return [3]float64{0, 1.4, 3.2}
	}
	return *c.CameraPosition
}

// GetCameraTarget returns the camera_target value or the default.
func (c *ViewerConfig) GetCameraTarget() [3]float64 {
	if c.CameraTarget == nil {
		return [3]float64{0, 1, 0}
	}
	return *c.CameraTarget
}

// GetCameraFovY returns the camera_fov_y value or the default.
func (c *ViewerConfig) GetCameraFovY() float64 {
	if c.CameraFovY == nil {
		return 45
	}
	return *c.CameraFovY
}

// GetViewportX returns the viewport_x value or the default.
func (c *ViewerConfig) GetViewportX() float64 {
	if c.ViewportX == nil {
		return 0
	}
	return *c.ViewportX
}

// GetViewportWidth returns the viewport_width value or the default.
func (c *ViewerConfig) GetViewportWidth() float64 {
	if c.ViewportWidth == nil {
		return 1280
	}
	return *c.ViewportWidth
}

// GetViewportHeight returns the viewport_height value or the default.
func (c *ViewerConfig) GetViewportHeight() float64 {
	if c.ViewportHeight == nil {
		return 720
	}
	return *c.ViewportHeight
}

// GetGroundHalfSize returns the ground_half_size value or the default.
func (c *ViewerConfig) GetGroundHalfSize() float64 {
	if c.GroundHalfSize == nil {
		return 10
	}
	return *c.GroundHalfSize
}

// GetListen returns the listen value or the default.
func (c *ViewerConfig) GetListen() string {
	if c.Listen == nil {
		return "localhost:8090"
	}
	return *c.Listen
}

// GetGRPCListen returns the grpc_listen value or the default.
func (c *ViewerConfig) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return "localhost:50061"
	}
	return *c.GRPCListen
}

// GetRecordPath returns the record_path value or the default (disabled).
func (c *ViewerConfig) GetRecordPath() string {
	if c.RecordPath == nil {
		return ""
	}
	return *c.RecordPath
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *ViewerConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return time.Second
	}
	return d
}
