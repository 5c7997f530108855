// Package ingest accepts detection frames from a remote tracker over a
// websocket and hands them to the frame loop.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// ErrBusy is sent to a detector that connects while another is active.
var ErrBusy = errors.New("ingest: a detector is already connected")

// Config controls the ingest endpoint.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`     // Websocket route
	Buffer  int    `yaml:"buffer" json:"buffer"` // Frames held while the loop is busy
}

// DefaultConfig returns a disabled endpoint at /ws/detector.
func DefaultConfig() Config {
	return Config{
		Path:   "/ws/detector",
		Buffer: 2,
	}
}

// Stats counts ingest traffic.
type Stats struct {
	Connected        bool   `json:"connected"`
	DetectorID       string `json:"detector_id,omitempty"`
	MessagesReceived uint64 `json:"messages_received"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesDropped    uint64 `json:"frames_dropped"` // Replaced by a newer frame while queued
	Rejected         uint64 `json:"rejected"`
}

// Server receives detection frames. It implements the frame loop's source
// through Next.
type Server struct {
	cfg    Config
	logger *slog.Logger
	frames chan proximity.Frame

	mu         sync.Mutex
	detectorID string // Empty when no detector is connected
	closed     bool
	done       chan struct{}

	seq              atomic.Uint64
	messagesReceived atomic.Uint64
	framesReceived   atomic.Uint64
	framesDropped    atomic.Uint64
	rejected         atomic.Uint64
}

// New creates an ingest server.
func New(cfg Config, logger *slog.Logger) *Server {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger.With("component", "ingest"),
		frames: make(chan proximity.Frame, cfg.Buffer),
		done:   make(chan struct{}),
	}
}

// RegisterRoutes registers the detector websocket route on a Fiber app
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Get(s.cfg.Path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(s.handleDetector))
}

// Next blocks until a frame arrives. It returns io.EOF once the server is
// closed and ctx.Err() when ctx ends first.
func (s *Server) Next(ctx context.Context) (proximity.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		return proximity.Frame{}, io.EOF
	case <-ctx.Done():
		return proximity.Frame{}, ctx.Err()
	}
}

// Close ends the source. Pending frames are discarded.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	id := s.detectorID
	s.mu.Unlock()
	return Stats{
		Connected:        id != "",
		DetectorID:       id,
		MessagesReceived: s.messagesReceived.Load(),
		FramesReceived:   s.framesReceived.Load(),
		FramesDropped:    s.framesDropped.Load(),
		Rejected:         s.rejected.Load(),
	}
}

// claim makes id the active detector.
func (s *Server) claim(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.EOF
	}
	if s.detectorID != "" {
		return ErrBusy
	}
	s.detectorID = id
	return nil
}

func (s *Server) release(id string) {
	s.mu.Lock()
	if s.detectorID == id {
		s.detectorID = ""
	}
	s.mu.Unlock()
}

// handleDetector handles a detector websocket connection. Only this
// goroutine writes to c.
func (s *Server) handleDetector(c *websocket.Conn) {
	id := c.Query("id")
	if id == "" {
		id = uuid.NewString()
	}
	logger := s.logger.With("detector_id", id)

	if err := s.claim(id); err != nil {
		logger.Warn("detector rejected", "error", err)
		reply, _ := protocol.NewErrorMessage("", err)
		s.send(c, reply)
		c.Close()
		return
	}
	logger.Info("detector connected")

	defer func() {
		s.release(id)
		logger.Info("detector disconnected")
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("read error", "error", err)
			}
			return
		}
		s.messagesReceived.Add(1)

		if reply := s.handleMessage(data); reply != nil {
			s.send(c, reply)
		}
	}
}

// handleMessage processes one inbound message and returns an optional
// reply.
func (s *Server) handleMessage(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.rejected.Add(1)
		reply, _ := protocol.NewErrorMessage("", err)
		return reply
	}

	switch msg.Type {
	case protocol.TypeDetections:
		df, err := msg.GetDetectionFrame()
		if err == nil && df.Width <= 0 {
			err = fmt.Errorf("frame width %d", df.Width)
		}
		if err != nil {
			s.rejected.Add(1)
			reply, _ := protocol.NewErrorMessage(msg.Type, err)
			return reply
		}
		s.deliver(s.toFrame(df))
		return nil

	case protocol.TypePing:
		ping, _ := msg.GetPingData()
		var id string
		pingTS := msg.Timestamp
		if ping != nil {
			id = ping.ID
			if ping.Timestamp != 0 {
				pingTS = ping.Timestamp
			}
		}
		reply, _ := protocol.NewPongMessage(id, pingTS, time.Now().UnixMilli())
		return reply

	default:
		s.rejected.Add(1)
		reply, _ := protocol.NewErrorMessage(msg.Type, fmt.Errorf("unsupported message type %q", msg.Type))
		return reply
	}
}

// toFrame converts df, numbering it when the detector did not.
func (s *Server) toFrame(df *protocol.DetectionFrame) proximity.Frame {
	f := df.ToFrame()
	if f.Sequence == 0 {
		f.Sequence = s.seq.Add(1)
	} else {
		s.seq.Store(f.Sequence)
	}
	return f
}

// deliver queues f, replacing the oldest queued frame when the loop is
// behind.
func (s *Server) deliver(f proximity.Frame) {
	s.framesReceived.Add(1)
	for {
		select {
		case s.frames <- f:
			return
		default:
		}
		select {
		case <-s.frames:
			s.framesDropped.Add(1)
		default:
		}
	}
}

func (s *Server) send(c *websocket.Conn, msg *protocol.Message) {
	if msg == nil {
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("write failed", "error", err)
	}
}
