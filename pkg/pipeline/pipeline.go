// Package pipeline drives the frame loop: pull a frame from a source, run it
// through the proximity engine, hand the result to every sink.
//
// The loop is frame-synchronous. One frame is fully processed before the
// next is requested, so sinks must not block on slow work such as speech.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// ErrQuit is returned by a sink to end the loop, e.g. on the quit key.
var ErrQuit = errors.New("pipeline: quit requested")

// Frame is one engine frame plus the image it was detected on. Image is nil
// for remote sources and is only valid until the next call to Next.
type Frame struct {
	proximity.Frame
	Image *gocv.Mat
}

// Source produces frames. Next returns io.EOF when there are no more.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Output is what sinks receive for each frame.
type Output struct {
	Frame
	Result proximity.FrameResult
}

// Sink consumes engine output. Returning ErrQuit stops the loop; any other
// error is logged and the loop continues.
type Sink interface {
	Consume(ctx context.Context, out *Output) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, out *Output) error

// Consume calls f.
func (f SinkFunc) Consume(ctx context.Context, out *Output) error {
	return f(ctx, out)
}

// Config controls the loop.
type Config struct {
	// MaxSourceErrors ends the loop after this many consecutive source
	// errors. Zero means 10.
	MaxSourceErrors int `yaml:"max_source_errors" json:"max_source_errors"`
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{MaxSourceErrors: 10}
}

// Stats counts frames seen by the loop.
type Stats struct {
	Session      string        `json:"session"`
	Uptime       time.Duration `json:"uptime"`
	Frames       uint64        `json:"frames"`
	Alerts       uint64        `json:"alerts"`
	DangerFrames uint64        `json:"danger_frames"`
	Danger       bool          `json:"danger"` // Set on the most recent frame
	SourceErrors uint64        `json:"source_errors"`
	SinkErrors   uint64        `json:"sink_errors"`
}

// Pipeline is the frame orchestrator.
type Pipeline struct {
	cfg     Config
	engine  *proximity.Engine
	source  Source
	sinks   []Sink
	logger  *slog.Logger
	session string
	started time.Time

	mu    sync.RWMutex
	stats Stats
}

// New creates a pipeline. Sinks run in the order given, so put the overlay
// renderer before anything that encodes the image.
func New(cfg Config, engine *proximity.Engine, source Source, logger *slog.Logger, sinks ...Sink) *Pipeline {
	if cfg.MaxSourceErrors <= 0 {
		cfg.MaxSourceErrors = DefaultConfig().MaxSourceErrors
	}
	if logger == nil {
		logger = slog.Default()
	}
	session := uuid.NewString()
	return &Pipeline{
		cfg:     cfg,
		engine:  engine,
		source:  source,
		sinks:   sinks,
		logger:  logger.With("component", "pipeline", "session", session),
		session: session,
		stats:   Stats{Session: session},
	}
}

// Session returns the session ID, fresh for every Pipeline.
func (p *Pipeline) Session() string {
	return p.session
}

// Run processes frames until the source ends, a sink asks to quit or ctx is
// done; all three return nil. The source is closed on return. Run returns an
// error only when the source keeps failing.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()

	defer func() {
		if err := p.source.Close(); err != nil {
			p.logger.Warn("close source", "error", err)
		}
	}()

	p.logger.Info("pipeline started", "sinks", len(p.sinks))

	failures := 0
	for {
		f, err := p.source.Next(ctx)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, io.EOF):
			p.logger.Info("source ended", "frames", p.Stats().Frames)
			return nil
		case ctx.Err() != nil:
			p.logger.Info("pipeline stopped", "frames", p.Stats().Frames)
			return nil
		default:
			failures++
			p.mu.Lock()
			p.stats.SourceErrors++
			p.mu.Unlock()
			p.logger.Warn("source error", "error", err, "consecutive", failures)
			if failures >= p.cfg.MaxSourceErrors {
				return fmt.Errorf("pipeline: %d consecutive source errors: %w", failures, err)
			}
			continue
		}

		if quit := p.process(ctx, f); quit {
			p.logger.Info("quit requested", "frames", p.Stats().Frames)
			return nil
		}
	}
}

// process runs one frame through the engine and the sinks. It reports
// whether a sink asked to quit.
func (p *Pipeline) process(ctx context.Context, f Frame) bool {
	res := p.engine.ProcessFrame(f.Frame)

	p.mu.Lock()
	p.stats.Frames++
	p.stats.Alerts += uint64(len(res.Alerts))
	p.stats.Danger = res.Danger
	if res.Danger {
		p.stats.DangerFrames++
	}
	p.mu.Unlock()

	out := &Output{Frame: f, Result: res}
	quit := false
	for _, s := range p.sinks {
		err := s.Consume(ctx, out)
		switch {
		case err == nil:
		case errors.Is(err, ErrQuit):
			quit = true
		default:
			p.mu.Lock()
			p.stats.SinkErrors++
			p.mu.Unlock()
			p.logger.Warn("sink error", "sequence", f.Sequence, "error", err)
		}
	}
	return quit
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.stats
	if !p.started.IsZero() {
		s.Uptime = time.Since(p.started)
	}
	return s
}
