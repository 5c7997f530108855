package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/pkg/audio"
	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/emitter"
	"github.com/teslashibe/go-wayfinder/pkg/ingest"
	"github.com/teslashibe/go-wayfinder/pkg/overlay"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
	"github.com/teslashibe/go-wayfinder/pkg/speech"
	"github.com/teslashibe/go-wayfinder/pkg/tracking"
	"github.com/teslashibe/go-wayfinder/pkg/tracking/detection"
	"github.com/teslashibe/go-wayfinder/pkg/tts"
	"github.com/teslashibe/go-wayfinder/pkg/web"
)

// statusInterval is how often the dashboard status is refreshed.
const statusInterval = 500 * time.Millisecond

// app owns every long-lived component.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	engine    *proximity.Engine
	pipeline  *pipeline.Pipeline
	web       *web.Server
	announcer *speech.Announcer
	emitter   *emitter.Emitter

	closers []func() error
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	engineCfg := cfg.Proximity
	engineCfg.Logger = logger
	engine, err := proximity.NewEngine(engineCfg, nil)
	if err != nil {
		return nil, err
	}
	a.engine = engine

	var cameras *camera.Manager
	if cfg.Source == config.SourceCamera {
		cameras = camera.NewManager(cfg.Camera)
	}
	if cfg.Web.Enabled {
		a.web = web.NewServer(cfg.Web, cfg.Proximity, cameras, logger)
	}

	source, err := a.buildSource(cameras)
	if err != nil {
		a.Close()
		return nil, err
	}

	sinks, err := a.buildSinks(cameras)
	if err != nil {
		source.Close()
		a.Close()
		return nil, err
	}

	a.pipeline = pipeline.New(cfg.Pipeline, engine, source, logger, sinks...)
	return a, nil
}

func (a *app) buildSource(cameras *camera.Manager) (pipeline.Source, error) {
	switch a.cfg.Source {
	case config.SourceIngest:
		srv := ingest.New(a.cfg.Ingest, a.logger)
		srv.RegisterRoutes(a.web.App())
		return pipeline.Remote(srv), nil

	case config.SourceReplay:
		f, err := os.Open(a.cfg.ReplayPath)
		if err != nil {
			return nil, fmt.Errorf("open replay: %w", err)
		}
		src := pipeline.NewReplaySource(f)
		src.Interval = time.Second / time.Duration(max(a.cfg.Camera.Framerate, 1))
		return src, nil

	default:
		capture, err := camera.Open(a.cfg.Camera, a.logger)
		if err != nil {
			return nil, err
		}
		yolo, err := detection.NewYOLO(a.cfg.Detector, a.logger)
		if err != nil {
			capture.Close()
			return nil, err
		}
		cameras.OnConfigChange = capture.Reconfigure
		return pipeline.NewCameraSource(capture, yolo, tracking.New(a.cfg.Tracking, a.logger), a.logger), nil
	}
}

// buildSinks returns the sinks in frame order: draw, speak, show, publish.
func (a *app) buildSinks(cameras *camera.Manager) ([]pipeline.Sink, error) {
	var sinks []pipeline.Sink

	if a.cfg.Source == config.SourceCamera {
		s := pipeline.OverlaySink{Renderer: overlay.NewRenderer(overlay.DefaultStyle())}
		if a.cfg.Preview {
			w := overlay.NewWindow(overlay.WindowTitle, 'q')
			a.closers = append(a.closers, w.Close)
			s.Window = w
		}
		sinks = append(sinks, s)
	}

	announcer, err := a.buildAnnouncer()
	if err != nil {
		return nil, err
	}
	if announcer != nil {
		a.announcer = announcer
		sinks = append(sinks, pipeline.SpeechSink{Announcer: announcer})
	} else {
		sinks = append(sinks, pipeline.SinkFunc(a.logAlerts))
	}

	if a.web != nil {
		s := &pipeline.DashboardSink{
			Dashboard:      a.web,
			Quality:        a.cfg.Camera.Quality,
			StatusInterval: statusInterval,
			Status:         a.status,
		}
		if cameras != nil {
			s.QualityFunc = func() int { return cameras.Config().Quality }
		}
		sinks = append(sinks, s)
	}

	if a.cfg.MQTT.Enabled() {
		a.emitter = emitter.New(a.cfg.MQTT, a.logger)
		sinks = append(sinks, pipeline.PublishSink{Publisher: a.emitter})
	}
	return sinks, nil
}

// buildAnnouncer wires TTS to the sound device. A nil announcer without an
// error means alerts are only logged.
func (a *app) buildAnnouncer() (*speech.Announcer, error) {
	if a.cfg.TTS.Provider == config.ProviderNone {
		return nil, nil
	}

	synth, err := a.buildSynthesizer()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, synth.Close)

	player, err := audio.NewPlayer(audio.DefaultFormat, a.logger)
	if err != nil {
		a.logger.Warn("no audio device, alerts will be logged only", "error", err)
		return nil, nil
	}
	a.closers = append(a.closers, func() error { player.Stop(); return nil })

	return speech.NewAnnouncer(a.cfg.Speech, synth, player, a.logger), nil
}

func (a *app) buildSynthesizer() (tts.Provider, error) {
	c := a.cfg.TTS
	opts := []tts.Option{tts.WithRate(c.Rate), tts.WithLogger(a.logger)}
	if c.Timeout > 0 {
		opts = append(opts, tts.WithTimeout(c.Timeout))
	}

	espeak := func() (tts.Provider, error) {
		o := slices.Clone(opts)
		if c.Binary != "" {
			o = append(o, tts.WithBinary(c.Binary))
		}
		if c.Voice != "" && c.Provider == config.ProviderEspeak {
			o = append(o, tts.WithVoice(c.Voice))
		}
		return tts.NewEspeak(o...)
	}
	openai := func() (tts.Provider, error) {
		o := append(slices.Clone(opts), tts.WithAPIKey(c.APIKey))
		if c.Voice != "" {
			o = append(o, tts.WithVoice(c.Voice))
		}
		if c.Model != "" {
			o = append(o, tts.WithModel(c.Model))
		}
		return tts.NewOpenAI(o...)
	}

	switch c.Provider {
	case config.ProviderEspeak:
		return espeak()
	case config.ProviderOpenAI:
		return openai()
	}

	// auto: OpenAI first when a key is set, espeak behind it
	var providers []tts.Provider
	if c.APIKey != "" {
		p, err := openai()
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if p, err := espeak(); err == nil {
		providers = append(providers, p)
	} else {
		a.logger.Warn("espeak unavailable", "error", err)
	}
	if len(providers) == 0 {
		return nil, errors.New("no tts provider available: set OPENAI_API_KEY or install espeak-ng")
	}
	return tts.NewChainWithLogger(a.logger, providers...)
}

// logAlerts stands in for speech when there is no synthesizer.
func (a *app) logAlerts(_ context.Context, out *pipeline.Output) error {
	for _, m := range out.Result.Alerts {
		a.logger.Info("alert", "text", m.Text, "object_id", m.ObjectID, "danger", m.IsDanger)
	}
	return nil
}

func (a *app) status() protocol.StatusData {
	stats := a.pipeline.Stats()
	s := protocol.StatusData{
		Session:         stats.Session,
		Source:          a.cfg.Source,
		UptimeSec:       stats.Uptime.Seconds(),
		FramesProcessed: a.engine.FramesProcessed(),
		Danger:          stats.Danger,
		TrackedObjects:  a.engine.Store().Len(),
	}
	if a.announcer != nil {
		s.Speaking = a.announcer.Speaking()
		s.SpeechQueue = a.announcer.QueueLen()
	}
	return s
}

// Run starts the services and blocks in the frame loop. Cancelling ctx, the
// quit key and the end of the source all shut everything down.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.announcer != nil {
		a.announcer.Start(ctx)
	}
	if a.emitter != nil {
		if err := a.emitter.Connect(ctx); err != nil {
			a.logger.Warn("mqtt unavailable, retrying in background", "error", err)
		}
		a.emitter.Start(ctx)
	}
	if a.web != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.web.Start(ctx); err != nil {
				a.logger.Error("dashboard stopped", "error", err)
				cancel()
			}
		}()
	}

	a.logger.Info("wayfinder running",
		"source", a.cfg.Source,
		"web", a.cfg.Web.Enabled,
		"speech", a.announcer != nil,
		"mqtt", a.emitter != nil,
	)

	err := a.pipeline.Run(ctx)
	cancel()
	wg.Wait()

	stats := a.pipeline.Stats()
	a.logger.Info("wayfinder stopped",
		"frames", stats.Frames,
		"alerts", stats.Alerts,
		"danger_frames", stats.DangerFrames,
	)
	return err
}

// Close releases what Run does not.
func (a *app) Close() {
	if a.emitter != nil {
		if err := a.emitter.Close(); err != nil {
			a.logger.Debug("close mqtt", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug("close", "error", err)
		}
	}
	a.closers = nil
}
