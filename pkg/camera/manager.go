package camera

import (
	"fmt"
	"strings"
	"sync"
)

// Update is a partial change to the capture settings. Nil fields are left
// alone. A preset is applied first and the other fields override it.
type Update struct {
	Preset    string `json:"preset,omitempty"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`
	Framerate *int   `json:"framerate,omitempty"`
	Quality   *int   `json:"quality,omitempty"`
	Mirror    *bool  `json:"mirror,omitempty"`
}

// Manager owns the live capture settings. Changes are validated, stored
// and handed to OnConfigChange, which applies them to the device.
type Manager struct {
	mu     sync.RWMutex
	config Config

	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// Config returns the current settings.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Set replaces the settings. Invalid settings are rejected and not stored.
func (m *Manager) Set(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("camera: invalid config: %s", strings.Join(problems, "; "))
	}

	m.mu.Lock()
	m.config = cfg
	apply := m.OnConfigChange
	m.mu.Unlock()

	if apply != nil {
		if err := apply(cfg); err != nil {
			return fmt.Errorf("camera: apply config: %w", err)
		}
	}
	return nil
}

// Apply merges u into the current settings. The device cannot be changed
// at runtime.
func (m *Manager) Apply(u Update) error {
	cfg := m.Config()

	if u.Preset != "" {
		p, ok := LookupPreset(u.Preset)
		if !ok {
			return fmt.Errorf("camera: unknown preset %q", u.Preset)
		}
		cfg = p.Apply(cfg)
	}
	setInt(&cfg.Width, u.Width)
	setInt(&cfg.Height, u.Height)
	setInt(&cfg.Framerate, u.Framerate)
	setInt(&cfg.Quality, u.Quality)
	if u.Mirror != nil {
		cfg.Mirror = *u.Mirror
	}

	return m.Set(cfg)
}

func setInt(dst, v *int) {
	if v != nil {
		*dst = *v
	}
}
