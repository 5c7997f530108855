// Package camera captures frames from a webcam, video file or stream.
package camera

import "strconv"

// Config holds capture settings. They can be changed at runtime through a
// Manager; size and framerate are re-applied to the open device.
type Config struct {
	// Device is a camera index ("0"), a video file path or a stream URL.
	Device string `yaml:"device" json:"device"`

	Width     int `yaml:"width" json:"width"`         // Requested frame width in pixels
	Height    int `yaml:"height" json:"height"`       // Requested frame height in pixels
	Framerate int `yaml:"framerate" json:"framerate"` // Target FPS
	Quality   int `yaml:"quality" json:"quality"`     // JPEG quality 1-100 for streaming

	// Mirror flips frames horizontally. Zones are computed on the flipped
	// frame, so only enable it for front-facing cameras.
	Mirror bool `yaml:"mirror" json:"mirror"`
}

// Limits for requested capture sizes
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns 640x480 from the first webcam, the size the
// distance calibration was tuned on.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
	}
}

// DeviceIndex returns the camera index when Device is numeric.
func (c Config) DeviceIndex() (int, bool) {
	i, err := strconv.Atoi(c.Device)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
