package health

import (
	"errors"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/web/handler"
)

const (
	// Path is the path to the health endpoint.
	Path = "/health"

	// RootPath answers load balancer probes hitting the bare host.
	RootPath = "/"
)

// Service is the health handler service.
type Service struct {
	handler.Service
	db    *gorm.DB
	alive *atomic.Bool
}

// Handler is the health handler.
var Handler = Service{}

// Init initializes the health handler. The alive flag is flipped off during
// graceful shutdown so load balancers drain this instance.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, alive *atomic.Bool) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.alive = alive

	app.Get(Path, s.Get)
	app.Get(RootPath, s.Root)

	return nil
}

// Root identifies the service for clients probing the bare host.
func (s *Service) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "go-admin-template",
		"status":  "ok",
	})
}

// Get reports service and database health.
func (s *Service) Get(c *fiber.Ctx) error {
	if s.alive != nil && !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "shutting down",
		})
	}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}

	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"db":     "unreachable",
		})
	}

	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
