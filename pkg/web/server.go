// Package web serves the live dashboard: engine status, recent alerts and
// the annotated camera feed.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/hub"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// Config controls the dashboard.
type Config struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Port         int    `yaml:"port" json:"port"`
	StaticDir    string `yaml:"static_dir" json:"static_dir"`       // Served at / when set
	AlertHistory int    `yaml:"alert_history" json:"alert_history"` // Alerts kept for /api/alerts
}

// DefaultConfig returns the dashboard on port 8080 keeping 200 alerts.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Port:         8080,
		AlertHistory: 200,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("web: port %d out of range", c.Port)
	}
	if c.AlertHistory <= 0 {
		return fmt.Errorf("web: alert_history must be positive")
	}
	return nil
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	engineConfig proximity.Config
	cameras      *camera.Manager // nil when frames come from ingest

	// State
	status     protocol.StatusData
	lastDanger bool
	stateMu    sync.RWMutex

	// Ring of recent alerts, oldest first
	alerts   []protocol.AlertData
	alertsMu sync.RWMutex

	// Hubs for websocket broadcast
	alertHub  *hub.Hub
	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates the dashboard. cameras may be nil.
func NewServer(cfg Config, engineConfig proximity.Config, cameras *camera.Manager, logger *slog.Logger) *Server {
	if cfg.AlertHistory <= 0 {
		cfg.AlertHistory = DefaultConfig().AlertHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	engineConfig.Logger = nil

	s := &Server{
		cfg:          cfg,
		logger:       logger.With("component", "web"),
		engineConfig: engineConfig,
		cameras:      cameras,
		alerts:       make([]protocol.AlertData, 0, cfg.AlertHistory),
		alertHub:     hub.New("alerts", logger),
		statusHub:    hub.New("status", logger),
		cameraHub:    hub.New("camera", logger),
	}
	s.statusHub.OnConnect = s.sendStatus

	app := fiber.New(fiber.Config{
		AppName:               "Wayfinder Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/alerts", s.handleAlerts)
	api.Get("/config", s.handleConfig)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)

	// WebSocket routes
	app.Get("/ws/alerts", upgradeOnly, websocket.New(s.hubHandler(s.alertHub)))
	app.Get("/ws/status", upgradeOnly, websocket.New(s.hubHandler(s.statusHub)))
	app.Get("/ws/camera", upgradeOnly, websocket.New(s.hubHandler(s.cameraHub)))

	s.app = app
	return s
}

// App returns the fiber app so other packages can mount routes on the
// same listener.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve runs the hubs and serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.alertHub.Run(ctx)
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			return fmt.Errorf("web: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	err = s.Serve(ctx, ln)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// RecordResult stores and broadcasts the alerts of one frame, plus a danger
// message whenever the danger signal changes.
func (s *Server) RecordResult(res proximity.FrameResult) {
	for _, a := range res.Alerts {
		data := protocol.FromAlert(res.Sequence, a)

		s.alertsMu.Lock()
		if len(s.alerts) == s.cfg.AlertHistory {
			copy(s.alerts, s.alerts[1:])
			s.alerts = s.alerts[:len(s.alerts)-1]
		}
		s.alerts = append(s.alerts, data)
		s.alertsMu.Unlock()

		s.broadcast(s.alertHub, protocol.TypeAlert, data)
	}

	s.stateMu.Lock()
	changed := res.Danger != s.lastDanger
	s.lastDanger = res.Danger
	s.stateMu.Unlock()

	if changed {
		s.broadcast(s.alertHub, protocol.TypeDanger, protocol.DangerData{Danger: res.Danger, Sequence: res.Sequence})
	}
}

// UpdateStatus replaces the status snapshot and pushes it to clients.
func (s *Server) UpdateStatus(status protocol.StatusData) {
	s.stateMu.Lock()
	s.status = status
	s.stateMu.Unlock()

	s.broadcast(s.statusHub, protocol.TypeStatus, status)
}

// Status returns the last status snapshot.
func (s *Server) Status() protocol.StatusData {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.status
}

// WantsCamera reports whether any client is watching the feed, so callers
// can skip JPEG encoding when nobody is.
func (s *Server) WantsCamera() bool {
	return s.cameraHub.ClientCount() > 0
}

// SendCameraFrame sends a JPEG frame to all camera clients
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// RecentAlerts returns up to limit of the newest alerts, oldest first.
// A limit of 0 or less returns all.
func (s *Server) RecentAlerts(limit int) []protocol.AlertData {
	s.alertsMu.RLock()
	defer s.alertsMu.RUnlock()

	start := 0
	if limit > 0 && limit < len(s.alerts) {
		start = len(s.alerts) - limit
	}
	out := make([]protocol.AlertData, len(s.alerts)-start)
	copy(out, s.alerts[start:])
	return out
}

func (s *Server) broadcast(h *hub.Hub, t protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		s.logger.Error("encode message", "type", t, "error", err)
		return
	}
	raw, err := msg.Bytes()
	if err != nil {
		s.logger.Error("encode message", "type", t, "error", err)
		return
	}
	h.Broadcast(hub.Text(raw))
}

// sendStatus greets a new status client with the current snapshot.
func (s *Server) sendStatus(c *hub.Client) {
	msg, err := protocol.NewStatusMessage(s.Status())
	if err != nil {
		return
	}
	if raw, err := msg.Bytes(); err == nil {
		c.Send(hub.Text(raw))
	}
}
