// Package web serves the agent world over HTTP: a JSON API to drive gaze
// shifts and a websocket feed of agent state.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/hub"
)

// Config configures the server.
type Config struct {
	Addr string // Listen address, e.g. ":8090"

	// BroadcastEvery sends a state frame every N world steps. Zero or one
	// broadcasts every step.
	BroadcastEvery int

	// AccessLog enables the fiber request logger.
	AccessLog bool
}

// Server is the HTTP and websocket front end of a World.
type Server struct {
	app    *fiber.App
	cfg    Config
	world  *agent.World
	states *hub.Hub
	log    *slog.Logger

	steps int
}

// NewServer creates a server over world and subscribes to its steps.
func NewServer(cfg Config, world *agent.World, lg *slog.Logger) *Server {
	if lg == nil {
		lg = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		world:  world,
		states: hub.New("state", lg),
		log:    lg.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-gaze",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/agents", s.handleListAgents)
	api.Post("/agents", s.handleCreateAgent)
	api.Get("/agents/:id", s.handleGetAgent)
	api.Delete("/agents/:id", s.handleDeleteAgent)
	api.Post("/agents/:id/gaze", s.handleGaze)
	api.Post("/agents/:id/stop", s.handleStop)
	api.Get("/agents/:id/params", s.handleGetParams)
	api.Put("/agents/:id/params", s.handleUpdateParams)
	api.Put("/agents/:id/viewer", s.handleSetViewer)
	api.Get("/agents/:id/estimate", s.handleEstimate)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	world.OnStep(s.onStep)

	s.app = app
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App { return s.app }

// Hub returns the state broadcast hub.
func (s *Server) Hub() *hub.Hub { return s.states }

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hub and serves HTTP on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.states.Run(ctx) })
	g.Go(func() error {
		s.log.Info("web server listening", "addr", ln.Addr().String())
		return s.app.Listener(ln)
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.app.Shutdown()
	})
	return g.Wait()
}

// onStep runs on the world loop goroutine.
func (s *Server) onStep(states []agent.Status) {
	s.steps++
	if s.cfg.BroadcastEvery > 1 && s.steps%s.cfg.BroadcastEvery != 0 {
		return
	}
	if !s.states.IsRunning() {
		return
	}
	if err := s.states.BroadcastJSON("state", states); err != nil {
		s.log.Error("encode state frame", "error", err)
	}
}

// handleError maps domain errors to HTTP statuses.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, agent.ErrAgentNotFound), errors.Is(err, agent.ErrTargetNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, gaze.ErrInvalidConfig),
		errors.Is(err, agent.ErrInvalidRig):
		code = fiber.StatusBadRequest
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
