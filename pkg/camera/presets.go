package camera

// Preset is a named capture size and rate. Device and mirror are never part
// of a preset.
type Preset struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Framerate int    `json:"framerate"`
	Quality   int    `json:"quality"`
}

// Preset names
const (
	PresetDefault = "default"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetLowFPS  = "lowfps" // Small boards running YOLO on the CPU
)

// The distance calibration assumes 640px wide frames; larger presets need
// a new focal length.
var presets = []Preset{
	{Name: PresetDefault, Width: 640, Height: 480, Framerate: 30, Quality: 80},
	{Name: Preset720p, Width: 1280, Height: 720, Framerate: 30, Quality: 80},
	{Name: Preset1080p, Width: 1920, Height: 1080, Framerate: 30, Quality: 80},
	{Name: PresetLowFPS, Width: 640, Height: 480, Framerate: 10, Quality: 60},
}

// Presets lists the presets in order of size.
func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

// LookupPreset finds a preset by name.
func LookupPreset(name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Apply returns cfg with the preset's size, rate and quality.
func (p Preset) Apply(cfg Config) Config {
	cfg.Width, cfg.Height = p.Width, p.Height
	cfg.Framerate, cfg.Quality = p.Framerate, p.Quality
	return cfg
}
