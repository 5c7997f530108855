package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/audio"
)

const providerEspeak = "espeak"

// Espeak implements Provider with the local espeak-ng engine. It works
// offline and is the fallback when no API is reachable.
type Espeak struct {
	config *Config
	binary string
	logger *slog.Logger
}

var _ Provider = (*Espeak)(nil)

// NewEspeak finds the engine binary. Without WithBinary it looks for
// espeak-ng, then espeak, on PATH.
func NewEspeak(opts ...Option) (*Espeak, error) {
	cfg := DefaultConfig()
	cfg.Voice = "en"
	cfg.Apply(opts...)

	binary, err := findEngine(cfg.Binary)
	if err != nil {
		return nil, err
	}

	return &Espeak{
		config: cfg,
		binary: binary,
		logger: cfg.Logger.With("component", "tts.espeak"),
	}, nil
}

func findEngine(configured string) (string, error) {
	candidates := []string{"espeak-ng", "espeak"}
	if configured != "" {
		candidates = []string{configured}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", WrapError(providerEspeak, fmt.Errorf("%w: tried %s", ErrEngineNotFound, strings.Join(candidates, ", ")))
}

// Synthesize runs the engine and returns its PCM output. Text is passed
// on stdin so it is never parsed as flags.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}
	start := time.Now()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.binary, e.args()...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, WrapError(providerEspeak, ctx.Err())
		}
		return nil, WrapError(providerEspeak, fmt.Errorf("run %s: %w: %s", e.binary, err, strings.TrimSpace(stderr.String())))
	}

	pcm, format, err := audio.ExtractPCM(stdout.Bytes())
	if err != nil {
		return nil, WrapError(providerEspeak, err)
	}
	if format.Channels != 1 {
		return nil, WrapError(providerEspeak, fmt.Errorf("expected mono output, got %d channels", format.Channels))
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized audio", "chars", len(text), "bytes", len(pcm), "latency_ms", latency)

	return &AudioResult{
		Audio:      pcm,
		SampleRate: format.SampleRate,
		Duration:   pcmDuration(len(pcm), format.SampleRate),
		CharCount:  len(text),
		LatencyMs:  latency,
		Provider:   providerEspeak,
	}, nil
}

func (e *Espeak) args() []string {
	args := []string{"--stdout"}
	if e.config.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.config.Rate))
	}
	if e.config.Voice != "" {
		args = append(args, "-v", e.config.Voice)
	}
	return args
}

// Health reports whether the engine binary is still present.
func (e *Espeak) Health(ctx context.Context) error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return WrapError(providerEspeak, fmt.Errorf("%w: %v", ErrEngineNotFound, err))
	}
	return nil
}

// Close is a no-op; each Synthesize runs its own process.
func (e *Espeak) Close() error {
	return nil
}
