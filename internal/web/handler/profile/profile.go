package profile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
	"github.com/go-admin-template/go-admin-template/internal/rbac"
	"github.com/go-admin-template/go-admin-template/internal/web/handler"
)

// Path is the path to the profile endpoints.
const Path = handler.APIPrefix + "/profile"

// APIKeyLength is the required length of a personal API key.
const APIKeyLength = 42

// UpdateRequest is the profile update request body. Omitted fields keep
// their current value.
type UpdateRequest struct {
	Email    *string `json:"email"`
	RealName *string `json:"real_name"`
	Debug    *bool   `json:"debug"`
	APIKey   *string `json:"api_key"`
}

// PasswordRequest is the password change request body.
type PasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Service is the profile handler service.
type Service struct {
	local *auth.LocalProvider
	rbac  *rbac.Service
}

// Handler is the profile handler.
var Handler = Service{}

// Init initializes the profile handler.
func (s *Service) Init(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	guard *auth.Guard,
	rbacService *rbac.Service,
) error {
	if app == nil || cfg == nil || db == nil || guard == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.local = auth.NewLocalProvider(db, cfg.Auth.LocalDB.Enabled)
	s.rbac = rbacService

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, guard.RequirePermission(auth.ResourceProfile, auth.ActionRead), s.Get)
		router.Put(handler.RouterRootPath, guard.RequirePermission(auth.ResourceProfile, auth.ActionWrite), s.Put)
		router.Post("/password", guard.RequirePermission(auth.ResourceProfile, auth.ActionWrite), s.ChangePassword)
	})

	return nil
}

// Get returns the current user's profile with effective permissions.
func (s *Service) Get(c *fiber.Ctx) error {
	userID := auth.UserIDFromContext(c)

	user, err := s.local.GetUserByID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	permissions, err := s.rbac.EffectivePermissions(userID)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", userID).Msg("Failed to resolve permissions")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	roles, err := s.rbac.UserRoles(userID)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", userID).Msg("Failed to load roles")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"user":        user,
		"api_key":     user.APIKey,
		"roles":       roles,
		"permissions": permissions,
	})
}

// Put updates the current user's profile fields.
func (s *Service) Put(c *fiber.Ctx) error {
	userID := auth.UserIDFromContext(c)

	req := new(UpdateRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	user, err := s.local.GetUserByID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	email := user.Email
	if req.Email != nil {
		email = *req.Email
	}

	realName := user.RealName
	if req.RealName != nil {
		realName = *req.RealName
	}

	if req.APIKey != nil && len(*req.APIKey) != APIKeyLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "api key must be exactly 42 characters",
		})
	}

	if err := s.local.UpdateUser(userID, email, realName); err != nil {
		log.Error().Err(err).Uint64("user_id", userID).Msg("Failed to update profile")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if req.Debug != nil {
		if err := s.local.SetDebug(userID, *req.Debug); err != nil {
			log.Error().Err(err).Uint64("user_id", userID).Msg("Failed to set debug flag")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	if req.APIKey != nil {
		if err := s.local.SetAPIKey(userID, *req.APIKey); err != nil {
			log.Error().Err(err).Uint64("user_id", userID).Msg("Failed to set api key")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	updated, err := s.local.GetUserByID(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(updated)
}

// ChangePassword changes the current user's password.
// Only local accounts carry a password; federated and directory accounts
// change theirs upstream.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	userID := auth.UserIDFromContext(c)

	req := new(PasswordRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "new password is required",
		})
	}

	user, err := s.local.GetUserByID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	if user.AuthSource != models.AuthSourceLocal {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "password is managed by the identity provider",
		})
	}

	if err := s.local.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidOldPassword) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "old password is incorrect",
			})
		}

		log.Error().Err(err).Uint64("user_id", userID).Msg("Failed to change password")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"status": "password changed",
	})
}
