// Package server exposes the engine over HTTP. The layer is thin: it
// parses params, calls the engine, and maps the error taxonomy onto
// status codes.
package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wastelens/wastelens/pkg/engine"
	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/version"
)

// Server hosts the HTTP API.
type Server struct {
	app    *fiber.App
	engine *engine.Engine
	logger *slog.Logger
}

// New builds the server and registers every route.
func New(eng *engine.Engine) *Server {
	app := fiber.New(fiber.Config{
		AppName:               version.AppName,
		DisableStartupMessage: true,
	})
	s := &Server{app: app, engine: eng, logger: eng.Logger}

	app.Use(fiberrecover.New())
	app.Use(s.requestLog)

	app.Post("/detect-waste", s.detectWaste)
	app.Get("/recommendations", s.listRecommendations)
	app.Post("/recommendations", s.generateRecommendations)
	app.Patch("/recommendations", s.transitionRecommendation)
	app.Delete("/recommendations", s.deleteRecommendation)
	app.Post("/execute-action", s.executeAction)
	app.Post("/drift-tick", s.driftTick)
	app.Get("/execution-mode", s.getExecutionMode)
	app.Put("/execution-mode", s.setExecutionMode)
	app.Get("/audit-log", s.auditLog)
	app.Get("/healthz", s.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return s
}

// Listen serves until shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown drains connections.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("http request",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", c.Response().StatusCode()),
		slog.Duration("elapsed", time.Since(start)))
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"version": version.Current}})
}

// statusFor maps the engine error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wasteerr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, wasteerr.ErrInvalidTransition),
		errors.Is(err, wasteerr.ErrMissingRecommendation),
		errors.Is(err, wasteerr.ErrUnknownAction),
		errors.Is(err, wasteerr.ErrUnknownScenario):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}
