// Package audio plays synthesized speech on the local sound device.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// DefaultFormat is what the device is opened with. Other rates are
// resampled on Play.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1}

// Player handles playback of PCM data via oto. Only one oto context may exist
// per process, so create a single Player and share it.
type Player struct {
	ctx    *oto.Context
	format Format
	logger *slog.Logger

	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

// NewPlayer opens the system audio device.
func NewPlayer(format Format, logger *slog.Logger) (*Player, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: open device: %w", err)
	}
	<-ready

	logger = logger.With("component", "audio")
	logger.Debug("audio player initialized", "sample_rate", format.SampleRate, "channels", format.Channels)
	return &Player{ctx: ctx, format: format, logger: logger}, nil
}

// Format returns the device format.
func (p *Player) Format() Format {
	return p.format
}

// Play plays mono PCM16 recorded at sampleRate. It blocks until playback
// finishes, Stop is called or ctx is done.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	pcm = Resample(pcm, sampleRate, p.format.SampleRate)

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active = nil
		p.mu.Unlock()
	}()

	player.Play()
	p.logger.Debug("playing", "bytes", len(pcm), "duration", p.format.Duration(len(pcm)))

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			player.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return player.Close()
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.logger.Debug("playback interrupted")
	}
}
