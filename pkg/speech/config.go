package speech

import (
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// Priority levels for announcements. Higher value speaks first.
type Priority int

const (
	PriorityInfo     Priority = iota // far objects, announced once
	PriorityWarning                  // near objects
	PriorityCritical                 // near objects close enough for guidance
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Config holds announcer parameters.
type Config struct {
	// QueueSize bounds pending announcements. On overflow the oldest entry
	// of the lowest priority is dropped.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// MaxAge drops far-object notices that waited longer than this. Danger
	// warnings never expire. Zero keeps everything.
	MaxAge time.Duration `yaml:"max_age" json:"max_age"`

	// CriticalBelowCM raises warnings nearer than this to PriorityCritical.
	CriticalBelowCM float64 `yaml:"critical_below_cm" json:"critical_below_cm"`

	// Interrupt lets a critical announcement cut off a lower-priority one
	// that is being spoken.
	Interrupt bool `yaml:"interrupt" json:"interrupt"`
}

// DefaultConfig returns announcer defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:       8,
		MaxAge:          4 * time.Second,
		CriticalBelowCM: 100,
		Interrupt:       true,
	}
}

// PriorityOf ranks an alert message.
func (c Config) PriorityOf(msg proximity.AlertMessage) Priority {
	if !msg.IsDanger {
		return PriorityInfo
	}
	if msg.Distance.Measurable() && msg.Distance.CM() < c.CriticalBelowCM {
		return PriorityCritical
	}
	return PriorityWarning
}

// Request is a queued announcement.
type Request struct {
	Alert    proximity.AlertMessage
	Priority Priority
	QueuedAt time.Time
}
