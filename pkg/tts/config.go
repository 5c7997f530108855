package tts

import (
	"log/slog"
	"time"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Remote provider credentials
	APIKey  string
	BaseURL string

	Voice string
	Model string

	// Rate is the speaking rate in words per minute. OpenAI maps it to its
	// speed multiplier relative to 150 wpm.
	Rate int

	// Binary is the local engine executable.
	Binary string

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration // Grows linearly per attempt

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithVoice sets the voice.
func WithVoice(voice string) Option {
	return func(c *Config) {
		c.Voice = voice
	}
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithRate sets the speaking rate in words per minute.
func WithRate(wpm int) Option {
	return func(c *Config) {
		c.Rate = wpm
	}
}

// WithBinary sets the local engine executable.
func WithBinary(path string) Option {
	return func(c *Config) {
		c.Binary = path
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultRate is the speaking rate alerts were tuned for.
const DefaultRate = 150

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Rate:       DefaultRate,
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required remote configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
