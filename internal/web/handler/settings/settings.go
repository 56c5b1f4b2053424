// Package settings provides the application settings JSON API.
//
// Settings are named JSON documents stored in the database. The server
// treats values as opaque; clients own their structure.
package settings

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/controller/setting"
	"github.com/go-admin-template/go-admin-template/internal/web/handler"
)

const (
	// Path is the base path for settings management.
	Path = handler.APIPrefix + "/settings"

	// MaxValueBytes caps the size of a stored settings document.
	MaxValueBytes = 64 * 1024
)

// Entry is a single named settings document.
type Entry struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Service provides settings management.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, guard *auth.Guard) error {
	if app == nil || cfg == nil || db == nil || guard == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db

	read := guard.RequirePermission(auth.ResourceSettings, auth.ActionRead)
	write := guard.RequirePermission(auth.ResourceSettings, auth.ActionWrite)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Get("/:name", read, s.Get)
		router.Put("/:name", write, s.Put)
		router.Delete("/:name", write, s.Delete)
	})

	return nil
}

// List returns all settings.
func (s *Service) List(c *fiber.Ctx) error {
	all, err := setting.GetAll(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list settings")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	entries := make([]Entry, 0, len(all))
	for _, item := range all {
		entries = append(entries, Entry{
			Name:  item.Name,
			Value: json.RawMessage(item.Value),
		})
	}

	return c.JSON(fiber.Map{
		"settings": entries,
	})
}

// Get returns a single setting by name.
func (s *Service) Get(c *fiber.Ctx) error {
	item, err := setting.Get(s.db, c.Params("name"))
	if err != nil {
		if errors.Is(err, setting.ErrSettingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "setting not found",
			})
		}

		log.Error().Err(err).Msg("Failed to read setting")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(Entry{
		Name:  item.Name,
		Value: json.RawMessage(item.Value),
	})
}

// Put creates or replaces a setting. The request body must be valid JSON.
func (s *Service) Put(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 || len(body) > MaxValueBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "value must be a JSON document of at most 64KiB",
		})
	}

	if !json.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "value must be valid JSON",
		})
	}

	// Body buffers are reused by fiber, store a copy
	value := make([]byte, len(body))
	copy(value, body)

	item, err := setting.Set(s.db, c.Params("name"), value)
	if err != nil {
		if errors.Is(err, setting.ErrSettingNameEmpty) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		log.Error().Err(err).Msg("Failed to store setting")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(Entry{
		Name:  item.Name,
		Value: json.RawMessage(item.Value),
	})
}

// Delete removes a setting by name.
func (s *Service) Delete(c *fiber.Ctx) error {
	if err := setting.DeleteByName(s.db, c.Params("name")); err != nil {
		if errors.Is(err, setting.ErrSettingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "setting not found",
			})
		}

		log.Error().Err(err).Msg("Failed to delete setting")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"status": "deleted",
	})
}
