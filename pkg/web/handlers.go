package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/hub"
)

// upgradeOnly rejects plain HTTP requests to websocket routes.
func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// hubHandler attaches each connection to h until it closes.
func (s *Server) hubHandler(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		if client == nil {
			c.Close()
			return
		}
		client.Run()
	}
}

// handleStatus returns the latest status snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleAlerts returns recent alerts, optionally limited by ?limit=N
func (s *Server) handleAlerts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must not be negative",
		})
	}
	return c.JSON(s.RecentAlerts(limit))
}

// handleConfig returns the engine configuration in use
func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.engineConfig)
}

// handleGetCamera returns the current camera configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no local camera",
		})
	}
	return c.JSON(s.cameras.Config())
}

// handleUpdateCamera applies a partial camera update such as
// {"preset":"720p"} or {"framerate":15}
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no local camera",
		})
	}

	var update camera.Update
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body: " + err.Error(),
		})
	}

	if err := s.cameras.Apply(update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	cfg := s.cameras.Config()
	s.logger.Info("camera config updated", "width", cfg.Width, "height", cfg.Height, "framerate", cfg.Framerate)
	return c.JSON(cfg)
}

// handleCameraPresets lists the available presets
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}
