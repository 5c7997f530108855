package detection

import (
	"image"
	"testing"
)

func TestDetection_Area(t *testing.T) {
	tests := []struct {
		name   string
		det    Detection
		expect int
	}{
		{"square", Detection{Box: image.Rect(0, 0, 10, 10)}, 100},
		{"offset", Detection{Box: image.Rect(100, 50, 140, 150)}, 4000},
		{"empty", Detection{Box: image.Rect(5, 5, 5, 5)}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.det.Area(); got != tc.expect {
				t.Errorf("Area: got %d, want %d", got, tc.expect)
			}
		})
	}
}

func TestFilterClasses(t *testing.T) {
	dets := []Detection{
		{ClassName: "person"},
		{ClassName: "car"},
		{ClassName: "dog"},
		{ClassName: "person"},
	}

	if got := FilterClasses(dets, nil); len(got) != 4 {
		t.Errorf("FilterClasses(nil): got %d, want 4", len(got))
	}

	got := FilterClasses(dets, []string{"person", "dog"})
	if len(got) != 3 {
		t.Fatalf("FilterClasses: got %d, want 3", len(got))
	}
	for _, d := range got {
		if d.ClassName == "car" {
			t.Error("FilterClasses kept a car")
		}
	}
	if dets[1].ClassName != "car" {
		t.Error("FilterClasses modified its input")
	}
}

func TestSortByConfidence(t *testing.T) {
	dets := []Detection{
		{ClassID: 1, Confidence: 0.5},
		{ClassID: 2, Confidence: 0.9},
		{ClassID: 3, Confidence: 0.5},
		{ClassID: 4, Confidence: 0.7},
	}
	SortByConfidence(dets)

	want := []int{2, 4, 1, 3}
	for i, id := range want {
		if dets[i].ClassID != id {
			t.Errorf("position %d: got class %d, want %d", i, dets[i].ClassID, id)
		}
	}
}

func TestClassName(t *testing.T) {
	tests := map[int]string{
		0:   "person",
		2:   "car",
		56:  "chair",
		79:  "toothbrush",
		80:  "unknown",
		-1:  "unknown",
		999: "unknown",
	}
	for id, want := range tests {
		if got := ClassName(id); got != want {
			t.Errorf("ClassName(%d) = %q, want %q", id, got, want)
		}
	}
	if len(COCOClasses) != 80 {
		t.Errorf("COCOClasses has %d entries, want 80", len(COCOClasses))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelPath == "" {
		t.Error("DefaultConfig: ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("DefaultConfig: ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("DefaultConfig: input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig: Validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.ModelPath = "" }},
		{"confidence", func(c *Config) { c.ConfidenceThresh = 1.5 }},
		{"nms", func(c *Config) { c.NMSThresh = -0.1 }},
		{"input", func(c *Config) { c.InputWidth = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate: expected error")
			}
		})
	}
}
