// Wayfinder - spoken proximity alerts for blind navigation
// Turns object detections into distance, direction and danger announcements
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/internal/log"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}
	log.Init(cfg.LogLevel)

	app, err := newApp(cfg, log.Component("wayfinder"))
	if err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, app)
	cancel()
	os.Exit(code)
}

type runner interface {
	Run(ctx context.Context) error
	Close()
}

// run drives a to completion and returns the exit code. a is closed on
// every path.
func run(ctx context.Context, a runner) int {
	defer a.Close()
	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		return 1
	}
	return 0
}

// parseFlags loads the config file and applies command line overrides.
// Flags win over the environment, which wins over the file.
func parseFlags() (config.Config, error) {
	path := flag.String("config", os.Getenv("WAYFINDER_CONFIG"), "Path to a YAML config file")
	level := flag.String("log-level", "", "Log level: debug, info, warn, error")
	source := flag.String("source", "", "Frame source: camera, ingest, replay")
	device := flag.String("camera", "", "Camera index, video file or stream URL")
	model := flag.String("model", "", "YOLO ONNX model path")
	port := flag.Int("port", 0, "Dashboard port")
	replay := flag.String("replay", "", "Replay detections from a JSONL file (implies -source replay)")
	preview := flag.Bool("preview", true, "Show the annotated preview window")
	ttsProvider := flag.String("tts", "", "TTS provider: auto, openai, espeak, none")
	flag.Parse()

	cfg, err := config.Read(*path)
	if err != nil {
		return config.Config{}, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = *level
		case "source":
			cfg.Source = *source
		case "camera":
			cfg.Camera.Device = *device
		case "model":
			cfg.Detector.ModelPath = *model
		case "port":
			cfg.Web.Port = *port
		case "replay":
			cfg.Source, cfg.ReplayPath = config.SourceReplay, *replay
		case "preview":
			cfg.Preview = *preview
		case "tts":
			cfg.TTS.Provider = *ttsProvider
		}
	})

	return cfg, cfg.Validate()
}
