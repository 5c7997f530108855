// Package tts provides a unified interface for text-to-speech providers.
//
// Providers return raw mono PCM16 so that any of them can feed the audio
// player. OpenAI is used when an API key is configured and the local
// espeak-ng engine serves as the offline fallback:
//
//	openai, _ := tts.NewOpenAI(tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	espeak, _ := tts.NewEspeak(tts.WithRate(150))
//	provider, _ := tts.NewChain(openai, espeak)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Warning! person at 80.0 cm, left.")
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity or local engine availability.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains mono signed 16-bit little-endian PCM.
	Audio []byte

	// SampleRate of Audio in Hz.
	SampleRate int

	// Duration is the playback duration of Audio.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time until the audio was available.
	LatencyMs int64

	// Provider names the backend that produced the audio.
	Provider string
}

// Sample rates produced by the built-in providers.
const (
	SampleRateOpenAI = 24000
	SampleRateEspeak = 22050
)

// pcmDuration returns the playback time of mono PCM16.
func pcmDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n/2) * time.Second / time.Duration(sampleRate)
}
