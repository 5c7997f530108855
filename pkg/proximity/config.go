package proximity

import (
	"errors"
	"fmt"
	"log/slog"
)

// Config holds calibration and alert thresholds. It is read once at startup
// and never changes for the lifetime of an Engine.
type Config struct {
	// Calibration
	ReferenceHeightCM float64 `yaml:"reference_height_cm" json:"reference_height_cm"` // Real-world height of the reference object
	FocalLength       float64 `yaml:"focal_length" json:"focal_length"`               // Empirical focal length, pixels

	// Alert policy
	FarThresholdCM      float64 `yaml:"far_threshold_cm" json:"far_threshold_cm"`           // Beyond this, announce once only
	GuidanceThresholdCM float64 `yaml:"guidance_threshold_cm" json:"guidance_threshold_cm"` // Below this, add directional guidance
	DebounceDeltaCM     float64 `yaml:"debounce_delta_cm" json:"debounce_delta_cm"`         // Changes at or below this are jitter
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`   // Detections below this are ignored
	DangerThresholdCM   float64 `yaml:"danger_threshold_cm" json:"danger_threshold_cm"`     // Below this, raise the imminent-danger signal

	// StoreTTLFrames evicts alert records for objects unseen for more than
	// this many frames. Zero keeps records for the lifetime of the run.
	StoreTTLFrames uint64 `yaml:"store_ttl_frames" json:"store_ttl_frames"`

	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns the calibration used for an average adult (165 cm)
// seen through a typical 640px-wide webcam.
func DefaultConfig() Config {
	return Config{
		ReferenceHeightCM: 165,
		FocalLength:       700,

		FarThresholdCM:      500,
		GuidanceThresholdCM: 100,
		DebounceDeltaCM:     10,
		ConfidenceThreshold: 0.5,
		DangerThresholdCM:   50,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	var errs []error
	if c.ReferenceHeightCM <= 0 {
		errs = append(errs, fmt.Errorf("reference_height_cm must be positive, got %v", c.ReferenceHeightCM))
	}
	if c.FocalLength <= 0 {
		errs = append(errs, fmt.Errorf("focal_length must be positive, got %v", c.FocalLength))
	}
	if c.FarThresholdCM <= 0 {
		errs = append(errs, fmt.Errorf("far_threshold_cm must be positive, got %v", c.FarThresholdCM))
	}
	if c.GuidanceThresholdCM < 0 || c.GuidanceThresholdCM > c.FarThresholdCM {
		errs = append(errs, fmt.Errorf("guidance_threshold_cm must be between 0 and far_threshold_cm, got %v", c.GuidanceThresholdCM))
	}
	if c.DangerThresholdCM < 0 {
		errs = append(errs, fmt.Errorf("danger_threshold_cm must not be negative, got %v", c.DangerThresholdCM))
	}
	if c.DebounceDeltaCM < 0 {
		errs = append(errs, fmt.Errorf("debounce_delta_cm must not be negative, got %v", c.DebounceDeltaCM))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold must be between 0 and 1, got %v", c.ConfidenceThreshold))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger.With("component", "proximity")
	}
	return slog.Default().With("component", "proximity")
}
