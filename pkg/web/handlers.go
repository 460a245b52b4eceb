package web

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-soundscape/pkg/pipeline"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// handleHealth reports liveness and connected monitors
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"monitors": s.moodHub.ClientCount(),
	})
}

// handleMood returns the current read model
func (s *Server) handleMood(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

// handleFrame returns the last captured JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	frame, at := s.ctrl.LastFrame()
	if len(frame) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no frame captured")
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderLastModified, at.UTC().Format(http.TimeFormat))
	return c.Send(frame)
}

// handleEvents returns the activity feed
func (s *Server) handleEvents(c *fiber.Ctx) error {
	return c.JSON(s.Events())
}

// handleInteraction records the visitor's first gesture
func (s *Server) handleInteraction(c *fiber.Ctx) error {
	first := s.ctrl.RecordInteraction()
	if first {
		s.AddEvent("interaction", "audio unlocked")
	}
	return c.JSON(fiber.Map{"first": first})
}

// RoomRequest is the body of PUT /api/room.
type RoomRequest struct {
	Room string `json:"room"`
}

// handleRoom switches the current room
func (s *Server) handleRoom(c *fiber.Ctx) error {
	var req RoomRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Room) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "room is required")
	}
	room := s.ctrl.SetRoom(req.Room)
	s.AddEvent("room", "entered "+room)
	return c.JSON(fiber.Map{"room": room})
}

// ModeRequest is the body of PUT /api/mode. Override defaults to true;
// false clears the visitor's choice and returns to the room default.
type ModeRequest struct {
	Mode     string `json:"mode"`
	Override *bool  `json:"override"`
}

// handleMode sets or clears the mode override
func (s *Server) handleMode(c *fiber.Ctx) error {
	var req ModeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	if req.Override != nil && !*req.Override {
		s.ctrl.ClearModeOverride()
		s.AddEvent("mode", "override cleared")
		return c.JSON(s.ctrl.Snapshot())
	}

	mode, err := soundscape.ParseMode(req.Mode)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.ctrl.SetMode(mode)
	s.AddEvent("mode", "override "+mode.String())
	return c.JSON(s.ctrl.Snapshot())
}

// VolumeRequest is the body of PUT /api/volume.
type VolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// handleVolume sets the base volume
func (s *Server) handleVolume(c *fiber.Ctx) error {
	var req VolumeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Volume == nil || math.IsNaN(*req.Volume) {
		return fiber.NewError(fiber.StatusBadRequest, "volume is required")
	}
	v := *req.Volume
	if v < 0 || v > 1 {
		return fiber.NewError(fiber.StatusBadRequest, "volume must be within [0,1]")
	}
	s.ctrl.SetVolume(v)
	s.AddEvent("volume", fmt.Sprintf("base volume %.2f", v))
	return c.JSON(s.ctrl.Snapshot())
}

// handleCapture runs one capture cycle now
func (s *Server) handleCapture(c *fiber.Ctx) error {
	cycle, err := s.ctrl.RunCycle(c.UserContext())
	switch {
	case err == nil:
		s.AddEvent("cycle", describeCycle(cycle))
		return c.JSON(cycle)
	case errors.Is(err, pipeline.ErrAwaitingInteraction):
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true, "error": err.Error()})
	case errors.Is(err, pipeline.ErrCycleInFlight):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		s.AddEvent("error", err.Error())
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}

func describeCycle(c pipeline.Cycle) string {
	switch {
	case c.Dropped:
		return fmt.Sprintf("%s at %.1f%% dropped", c.Label, c.Confidence)
	case c.Promoted:
		return fmt.Sprintf("%s at %.1f%%, stable emotion now %s", c.Label, c.Confidence, c.Stable)
	default:
		return fmt.Sprintf("%s at %.1f%% in %s", c.Label, c.Confidence, time.Since(c.Started).Round(time.Millisecond))
	}
}
