// Package config loads the wayfinder configuration: defaults, then a YAML
// file, then environment overrides. It is read once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/emitter"
	"github.com/teslashibe/go-wayfinder/pkg/ingest"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
	"github.com/teslashibe/go-wayfinder/pkg/speech"
	"github.com/teslashibe/go-wayfinder/pkg/tracking"
	"github.com/teslashibe/go-wayfinder/pkg/tracking/detection"
	"github.com/teslashibe/go-wayfinder/pkg/tts"
	"github.com/teslashibe/go-wayfinder/pkg/web"
)

// Frame sources
const (
	SourceCamera = "camera" // Local camera + YOLO
	SourceIngest = "ingest" // Remote tracker over /ws/detector
	SourceReplay = "replay" // Recorded detection frames
)

// TTS providers
const (
	ProviderAuto   = "auto" // OpenAI when a key is set, espeak as fallback
	ProviderOpenAI = "openai"
	ProviderEspeak = "espeak"
	ProviderNone   = "none" // Alerts are logged, not spoken
)

// Environment variables
const (
	EnvLogLevel     = "WAYFINDER_LOG_LEVEL"
	EnvSource       = "WAYFINDER_SOURCE"
	EnvCameraDevice = "WAYFINDER_CAMERA_DEVICE"
	EnvModelPath    = "WAYFINDER_MODEL"
	EnvWebPort      = "WAYFINDER_WEB_PORT"
	EnvTTSProvider  = "WAYFINDER_TTS"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvMQTTBroker   = "MQTT_BROKER"
)

// TTSConfig selects and tunes the speech synthesizer.
type TTSConfig struct {
	Provider string        `yaml:"provider" json:"provider"`
	APIKey   string        `yaml:"api_key" json:"-"`
	Voice    string        `yaml:"voice" json:"voice"` // Provider default when empty
	Model    string        `yaml:"model" json:"model"`
	Rate     int           `yaml:"rate" json:"rate"`     // Words per minute
	Binary   string        `yaml:"binary" json:"binary"` // espeak executable
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// Config is the complete wayfinder configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	Source     string `yaml:"source" json:"source"`
	ReplayPath string `yaml:"replay_path" json:"replay_path"`
	Preview    bool   `yaml:"preview" json:"preview"` // Desktop window with overlays

	Proximity proximity.Config `yaml:"proximity" json:"proximity"`
	Tracking  tracking.Config  `yaml:"tracking" json:"tracking"`
	Detector  detection.Config `yaml:"detector" json:"detector"`
	Camera    camera.Config    `yaml:"camera" json:"camera"`
	Pipeline  pipeline.Config  `yaml:"pipeline" json:"pipeline"`

	TTS    TTSConfig     `yaml:"tts" json:"tts"`
	Speech speech.Config `yaml:"speech" json:"speech"`

	Web    web.Config     `yaml:"web" json:"web"`
	Ingest ingest.Config  `yaml:"ingest" json:"ingest"`
	MQTT   emitter.Config `yaml:"mqtt" json:"mqtt"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:  "info",
		Source:    SourceCamera,
		Preview:   true,
		Proximity: proximity.DefaultConfig(),
		Tracking:  tracking.DefaultConfig(),
		Detector:  detection.DefaultConfig(),
		Camera:    camera.DefaultConfig(),
		Pipeline:  pipeline.DefaultConfig(),
		TTS: TTSConfig{
			Provider: ProviderAuto,
			Rate:     tts.DefaultRate,
			Timeout:  10 * time.Second,
		},
		Speech: speech.DefaultConfig(),
		Web:    web.DefaultConfig(),
		Ingest: ingest.DefaultConfig(),
		MQTT:   emitter.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply further
// overrides first.
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvSource); v != "" {
		c.Source = v
	}
	if v := getenv(EnvCameraDevice); v != "" {
		c.Camera.Device = v
	}
	if v := getenv(EnvModelPath); v != "" {
		c.Detector.ModelPath = v
	}
	if v := getenv(EnvWebPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvWebPort, v, err)
		}
		c.Web.Port = port
	}
	if v := getenv(EnvTTSProvider); v != "" {
		c.TTS.Provider = v
	}
	if v := getenv(EnvOpenAIKey); v != "" {
		c.TTS.APIKey = v
	}
	if v := getenv(EnvMQTTBroker); v != "" {
		c.MQTT.Broker = v
	}
	return nil
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Source {
	case SourceCamera:
		if problems := c.Camera.Validate(); len(problems) > 0 {
			errs = append(errs, fmt.Errorf("camera: %v", problems))
		}
		if err := c.Detector.Validate(); err != nil {
			errs = append(errs, err)
		}
		if err := c.Tracking.Validate(); err != nil {
			errs = append(errs, err)
		}
	case SourceIngest:
		if !c.Web.Enabled {
			errs = append(errs, errors.New("source ingest needs web.enabled"))
		}
	case SourceReplay:
		if c.ReplayPath == "" {
			errs = append(errs, errors.New("source replay needs replay_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}

	if err := c.Proximity.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.TTS.Provider {
	case ProviderAuto, ProviderEspeak, ProviderNone:
	case ProviderOpenAI:
		if c.TTS.APIKey == "" {
			errs = append(errs, fmt.Errorf("tts provider openai needs %s", EnvOpenAIKey))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tts provider %q", c.TTS.Provider))
	}
	if c.TTS.Rate <= 0 {
		errs = append(errs, errors.New("tts.rate must be positive"))
	}

	if c.Web.Enabled {
		if err := c.Web.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.MQTT.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
