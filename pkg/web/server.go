// Package web provides the operator dashboard API for the walking study:
// a small fiber server exposing supervisor control endpoints and a
// websocket status stream.
package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/walklab/go-quadwalk/internal/log"
	"github.com/walklab/go-quadwalk/pkg/hub"
	"github.com/walklab/go-quadwalk/pkg/motion"
)

// statusBroadcastPeriod paces the websocket status stream. Dashboards do
// not need every 20ms tick.
const statusBroadcastPeriod = 200 * time.Millisecond

// Server is the operator dashboard server.
type Server struct {
	app  *fiber.App
	port string

	sup *motion.Supervisor

	statusHub *hub.Hub

	done chan struct{}
}

// NewServer wires the dashboard routes around a supervisor.
func NewServer(port string, sup *motion.Supervisor) *Server {
	s := &Server{
		port:      port,
		sup:       sup,
		statusHub: hub.New("status"),
		done:      make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Quadwalk Console",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/reset", s.handleReset)
	api.Post("/intent", s.handleIntent)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the hubs, the status broadcast loop and the listener. It
// blocks until the server shuts down.
func (s *Server) Start() error {
	log.Info("dashboard listening", "port", s.port)

	go s.statusHub.Run()
	go s.broadcastLoop()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server error", "err", err)
		}
	}()
}

// Shutdown stops the listener, the broadcast loop, and the hub.
func (s *Server) Shutdown() error {
	close(s.done)
	err := s.app.Shutdown()
	s.statusHub.Stop()
	return err
}

// broadcastLoop pushes periodic status frames into the status hub.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(statusBroadcastPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.sup.Status()); err != nil {
				log.Warn("status broadcast encode error", "err", err)
			}
		}
	}
}
