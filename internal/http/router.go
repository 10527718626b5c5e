package http

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"

	webui "vidfetch/frontend"
	"vidfetch/internal/config"
	"vidfetch/internal/metrics"
	"vidfetch/internal/registry"
)

// Submitter accepts a URL and returns the id of the job created for
// it. Implemented by the scheduler.
type Submitter interface {
	Submit(rawURL string) (string, error)
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, reg *registry.Registry, sched Submitter, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Inject dependencies into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("registry", reg)
		c.Locals("scheduler", sched)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"jobs_tracked": reg.Len(),
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metrics.SetJobsTracked(reg.Len())
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	submitMw := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.RateLimit.Enabled && cfg.RateLimit.PerMinute > 0 {
		submitMw = limiter.New(limiter.Config{
			Max:        cfg.RateLimit.PerMinute,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(SubmitResponse{
					Success: false,
					Error:   "Too many downloads, try again later",
				})
			},
		})
	}

	app.Post("/download", submitMw, submitHandler)
	app.Get("/status/:id", statusHandler)
	app.Get("/download/:filename", serveHandler)

	app.Get("/", func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-cache")
		c.Type("html", "utf-8")
		return c.Send(webui.Index())
	})

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
