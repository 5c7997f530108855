package tracking

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != ModeTrack {
		t.Errorf("Expected Mode=track, got %v", cfg.Mode)
	}
	if cfg.IoUThreshold != 0.3 {
		t.Errorf("Expected IoUThreshold=0.3, got %v", cfg.IoUThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestIndexConfig(t *testing.T) {
	cfg := IndexConfig()
	if cfg.Mode != ModeIndex {
		t.Errorf("Expected Mode=index, got %v", cfg.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "hungarian" }},
		{"zero iou", func(c *Config) { c.IoUThreshold = 0 }},
		{"iou above one", func(c *Config) { c.IoUThreshold = 1.2 }},
		{"negative misses", func(c *Config) { c.MaxMisses = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
