// Package server wires the chat engine to its transport: the Fiber app, the
// WebSocket admission seam, and the health and metrics routes.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"parley/internal/config"
	"parley/internal/middleware"
	"parley/internal/session"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config   *config.Config
	log      *slog.Logger
	sessions *session.Manager
	prom     *fiberprometheus.FiberPrometheus
}

// NewServer creates a new server instance with all dependencies.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	sessions := session.NewManager(session.Config{
		IdleAfter:         cfg.IdleAfter,
		IdleSweepInterval: cfg.IdleSweep,
		DisconnectGrace:   cfg.DisconnectTTL,
		ReapInterval:      cfg.ReapInterval,
		MaxConnections:    cfg.MaxConnections,
	}, logger)

	return &Server{
		config:   cfg,
		log:      logger,
		sessions: sessions,
		prom:     fiberprometheus.New("parley"),
	}, nil
}

// Sessions exposes the session manager for the bootstrap layer's shutdown.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and claimed username
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	app.Use(s.prom.Middleware)

	// Security headers
	app.Use(helmet.New())

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	s.prom.RegisterAt(app, "/metrics")
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Parley Metrics Dashboard",
	}))

	// The chat endpoint: admission is gated before the upgrade completes.
	app.Use("/ws", s.UpgradeGate())
	app.Get("/ws", s.WebSocketChatHandler())
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. The engine keeps all
// state in memory, so readiness reports engine stats rather than probing
// external dependencies.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":      "healthy",
		"connections": s.sessions.ConnectedCount(),
		"known_users": s.sessions.Registry().Size(),
		"time":        time.Now(),
	})
}

// Shutdown releases server resources: every live chat session is closed and
// the background monitors stop.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sessions.Shutdown(ctx)
}
