package tracking

import "fmt"

// IdentityMode selects how object ids are assigned across frames.
type IdentityMode string

const (
	// ModeTrack matches boxes across frames by overlap so an object keeps
	// its id while it moves.
	ModeTrack IdentityMode = "track"

	// ModeIndex uses the detection's position in the frame as its id. Ids
	// are stable only while the detector returns objects in the same order.
	ModeIndex IdentityMode = "index"
)

// Config holds tracker parameters
type Config struct {
	Mode IdentityMode `yaml:"mode" json:"mode"`

	IoUThreshold float64 `yaml:"iou_threshold" json:"iou_threshold"` // Minimum overlap to continue a track
	MaxMisses    int     `yaml:"max_misses" json:"max_misses"`       // Frames a track survives unmatched
	MatchClass   bool    `yaml:"match_class" json:"match_class"`     // Only match boxes of the same class
}

// DefaultConfig returns overlap tracking tuned for walking pace at ~15 fps.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeTrack,
		IoUThreshold: 0.3,
		MaxMisses:    5,
		MatchClass:   true,
	}
}

// IndexConfig returns per-slot identity.
func IndexConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeIndex
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeTrack, ModeIndex:
	default:
		return fmt.Errorf("tracking: unknown mode %q", c.Mode)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("tracking: iou_threshold must be in (0,1], got %v", c.IoUThreshold)
	}
	if c.MaxMisses < 0 {
		return fmt.Errorf("tracking: max_misses must not be negative, got %d", c.MaxMisses)
	}
	return nil
}
