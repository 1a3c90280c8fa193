package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

var errBadRequest = errors.New("bad request")

// GazeRequest is the body of POST /api/agents/:id/gaze. Exactly one of
// Target, Point or Front selects where to look.
type GazeRequest struct {
	Target string    `json:"target,omitempty"`
	Point  []float64 `json:"point,omitempty"`
	Front  bool      `json:"front,omitempty"`
}

// ViewerRequest is the body of PUT /api/agents/:id/viewer.
type ViewerRequest struct {
	Target string `json:"target"`
}

// handleHealth reports liveness and loop counters
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"agents":  len(s.world.List()),
		"ticks":   s.world.TickCount(),
		"clients": s.states.ClientCount(),
	})
}

// handleListAgents returns every agent's status
func (s *Server) handleListAgents(c *fiber.Ctx) error {
	return c.JSON(s.world.List())
}

// handleCreateAgent builds an agent from a YAML rig in the request body
func (s *Server) handleCreateAgent(c *fiber.Ctx) error {
	rig, err := agent.ParseRig(c.Body())
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	a, err := agent.FromRig(rig, s.log)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	s.world.Add(a)
	st, err := s.world.Status(a.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(st)
}

// handleGetAgent returns one agent's status
func (s *Server) handleGetAgent(c *fiber.Ctx) error {
	st, err := s.world.Status(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

// handleDeleteAgent removes an agent from the world
func (s *Server) handleDeleteAgent(c *fiber.Ctx) error {
	if err := s.world.Remove(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleGaze starts a gaze shift
func (s *Server) handleGaze(c *fiber.Ctx) error {
	var req GazeRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	picked := 0
	if req.Target != "" {
		picked++
	}
	if req.Point != nil {
		picked++
	}
	if req.Front {
		picked++
	}
	if picked != 1 {
		return fmt.Errorf("%w: give one of target, point or front", errBadRequest)
	}

	err := s.world.Do(c.Params("id"), func(a *agent.Agent) error {
		switch {
		case req.Front:
			a.GazeAtFront()
		case req.Point != nil:
			p, err := skeleton.Vec3(req.Point)
			if err != nil || len(req.Point) == 0 {
				return fmt.Errorf("%w: point needs [x, y, z]", errBadRequest)
			}
			a.GazeAtPoint(p)
		default:
			return a.GazeAtNamed(req.Target)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "shifting"})
}

// handleStop interrupts the running shift
func (s *Server) handleStop(c *fiber.Ctx) error {
	err := s.world.Do(c.Params("id"), func(a *agent.Agent) error {
		a.StopGaze()
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "stopped"})
}

// handleGetParams returns the gaze configuration
func (s *Server) handleGetParams(c *fiber.Ctx) error {
	var cfg gaze.Config
	err := s.world.Do(c.Params("id"), func(a *agent.Agent) error {
		cfg = a.Gaze().Config()
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(cfg)
}

// handleUpdateParams applies a partial gaze configuration
func (s *Server) handleUpdateParams(c *fiber.Ctx) error {
	var patch gaze.ParamPatch
	if err := c.BodyParser(&patch); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	var cfg gaze.Config
	err := s.world.Do(c.Params("id"), func(a *agent.Agent) error {
		if err := a.UpdateGaze(patch); err != nil {
			return err
		}
		cfg = a.Gaze().Config()
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(cfg)
}

// handleSetViewer makes a named target the viewer
func (s *Server) handleSetViewer(c *fiber.Ctx) error {
	var req ViewerRequest
	if err := c.BodyParser(&req); err != nil || req.Target == "" {
		return fmt.Errorf("%w: target required", errBadRequest)
	}
	err := s.world.Do(c.Params("id"), func(a *agent.Agent) error {
		return a.SetViewer(req.Target)
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"viewer": req.Target})
}

// handleEstimate returns the duration estimate of the last stylized shift
func (s *Server) handleEstimate(c *fiber.Ctx) error {
	var est gaze.Estimate
	err := s.world.Do(c.Params("id"), func(a *agent.Agent) error {
		est = a.Gaze().LastEstimate()
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(est)
}

// handleStateWS streams state frames to a websocket client
func (s *Server) handleStateWS(c *websocket.Conn) {
	hub.NewClient(s.states, c).Run()
}
