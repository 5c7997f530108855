package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourceCamera, cfg.Source)
	assert.Equal(t, 165.0, cfg.Proximity.ReferenceHeightCM)
	assert.Equal(t, 700.0, cfg.Proximity.FocalLength)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wayfinder.yaml")
	yml := `
log_level: debug
source: replay
replay_path: session.jsonl
proximity:
  far_threshold_cm: 600
camera:
  device: "1"
speech:
  max_age: 2s
mqtt:
  broker: broker.local:1883
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv(EnvOpenAIKey, "")
	t.Setenv(EnvMQTTBroker, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SourceReplay, cfg.Source)
	assert.Equal(t, 600.0, cfg.Proximity.FarThresholdCM)
	assert.Equal(t, 100.0, cfg.Proximity.GuidanceThresholdCM, "unset fields keep defaults")
	assert.Equal(t, "1", cfg.Camera.Device)
	assert.Equal(t, 2*time.Second, cfg.Speech.MaxAge)
	assert.True(t, cfg.MQTT.Enabled())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("proximity: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		EnvLogLevel:     "warn",
		EnvSource:       SourceIngest,
		EnvCameraDevice: "rtsp://cam/stream",
		EnvModelPath:    "/models/yolo.onnx",
		EnvWebPort:      "9090",
		EnvTTSProvider:  ProviderEspeak,
		EnvOpenAIKey:    "sk-test",
		EnvMQTTBroker:   "tcp://mqtt:1883",
	}))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, SourceIngest, cfg.Source)
	assert.Equal(t, "rtsp://cam/stream", cfg.Camera.Device)
	assert.Equal(t, "/models/yolo.onnx", cfg.Detector.ModelPath)
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, ProviderEspeak, cfg.TTS.Provider)
	assert.Equal(t, "sk-test", cfg.TTS.APIKey)
	assert.Equal(t, "tcp://mqtt:1883", cfg.MQTT.Broker)

	assert.Error(t, cfg.ApplyEnv(env(map[string]string{EnvWebPort: "http"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown source", func(c *Config) { c.Source = "usb" }, `unknown source "usb"`},
		{"replay without path", func(c *Config) { c.Source = SourceReplay }, "replay_path"},
		{"ingest without web", func(c *Config) { c.Source = SourceIngest; c.Web.Enabled = false }, "web.enabled"},
		{"bad thresholds", func(c *Config) { c.Proximity.FocalLength = 0 }, "focal_length"},
		{"openai without key", func(c *Config) { c.TTS.Provider = ProviderOpenAI }, EnvOpenAIKey},
		{"unknown provider", func(c *Config) { c.TTS.Provider = "polly" }, "polly"},
		{"bad camera", func(c *Config) { c.Camera.Device = "" }, "device is required"},
		{"bad mqtt", func(c *Config) { c.MQTT.Broker = "b:1883"; c.MQTT.QoS = 5 }, "qos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Proximity.FocalLength = 0
	cfg.TTS.Provider = "polly"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "focal_length")
	assert.Contains(t, err.Error(), "polly")
}

func TestValidate_ReplaySkipsCameraChecks(t *testing.T) {
	cfg := Default()
	cfg.Source = SourceReplay
	cfg.ReplayPath = "session.jsonl"
	cfg.Camera.Device = ""
	assert.NoError(t, cfg.Validate())
}

func TestRead_DoesNotValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wayfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: replay\n"), 0o644))
	t.Setenv(EnvSource, "")

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, SourceReplay, cfg.Source)

	_, err = Load(path)
	assert.ErrorContains(t, err, "replay_path")
}
