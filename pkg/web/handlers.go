package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/walklab/go-quadwalk/pkg/hub"
	"github.com/walklab/go-quadwalk/pkg/motion"
)

// IntentRequest is the request body for POST /api/intent. Absent fields
// leave the corresponding setting untouched.
type IntentRequest struct {
	TravelMode  *string `json:"travel_mode"`
	SpeedPolicy *string `json:"speed_policy"`
	GazeEnabled *bool   `json:"gaze_enabled"`
}

// handleStatus returns the current supervisor snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.sup.Status())
}

// handleStart begins a walking episode.
func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.sup.Start(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.sup.Status())
}

// handleStop commands an immediate stop.
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.sup.Stop()
	return c.JSON(s.sup.Status())
}

// handleReset clears a fault and returns to idle.
func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.sup.Reset(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.sup.Status())
}

// handleIntent updates the operator control surface for the next episode.
func (s *Server) handleIntent(c *fiber.Ctx) error {
	var req IntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.TravelMode != nil {
		mode, err := motion.ParseTravelMode(*req.TravelMode)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		s.sup.SetTravelMode(mode)
	}
	if req.SpeedPolicy != nil {
		policy, err := motion.ParsePolicy(*req.SpeedPolicy)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if err := s.sup.SetSpeedPolicy(policy); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}
	if req.GazeEnabled != nil {
		s.sup.SetGazeEnabled(*req.GazeEnabled)
	}

	return c.JSON(s.sup.Status())
}

// handleStatusWS attaches a dashboard client to the status stream.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send the current snapshot immediately so the dashboard does not
	// wait for the next broadcast tick.
	c.WriteJSON(s.sup.Status())

	client := hub.NewClient(s.statusHub, c)
	client.Run()
}
