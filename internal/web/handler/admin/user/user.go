// Package user provides the user management JSON API for the admin area.
package user

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
	"github.com/go-admin-template/go-admin-template/internal/web/handler"
)

const (
	// Path is the base path for user management.
	Path = handler.APIPrefix + "/users"

	// DefaultPageSize for pagination.
	DefaultPageSize = 25

	// MaxPageSize caps the page size a client may request.
	MaxPageSize = 200
)

// CreateRequest is the user creation request body.
type CreateRequest struct {
	Username string `json:"username" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8"`
	RealName string `json:"real_name" validate:"max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user viewer"`
}

// UpdateRequest is the user update request body.
type UpdateRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	RealName *string `json:"real_name"`
	Active   *bool   `json:"active"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin user viewer"`
}

// BulkRequest names a set of users for a bulk operation.
type BulkRequest struct {
	IDs []uint64 `json:"ids" validate:"required,min=1"`
}

// BulkPermissionsRequest applies a role preset to a set of users.
type BulkPermissionsRequest struct {
	IDs  []uint64 `json:"ids" validate:"required,min=1"`
	Role string   `json:"role" validate:"required,oneof=admin user viewer"`
}

// ResetPasswordRequest is the admin password reset request body.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// Service provides CRUD operations for users.
type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	local     *auth.LocalProvider
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, guard *auth.Guard) error {
	if app == nil || cfg == nil || db == nil || guard == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.local = auth.NewLocalProvider(db, cfg.Auth.LocalDB.Enabled)
	s.validator = validator.New()

	read := guard.RequirePermission(auth.ResourceUsers, auth.ActionRead)
	write := guard.RequirePermission(auth.ResourceUsers, auth.ActionWrite)
	del := guard.RequirePermission(auth.ResourceUsers, auth.ActionDelete)

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, read, s.List)
		router.Post(handler.RouterRootPath, write, s.Create)
		router.Get("/:id", read, s.Get)
		router.Put("/:id", write, s.Update)
		router.Delete("/:id", del, s.Delete)
		router.Post("/:id/activate", write, s.Activate)
		router.Post("/:id/deactivate", write, s.Deactivate)
		router.Post("/:id/password", write, s.ResetPassword)
		router.Post("/bulk/delete", del, s.BulkDelete)
		router.Post("/bulk/permissions", write, s.BulkSetPermissions)
	})

	return nil
}

// List returns a paginated user listing with optional filters.
func (s *Service) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize := c.QueryInt("page_size", DefaultPageSize)
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	var active *bool

	switch c.Query("active") {
	case "true":
		v := true
		active = &v
	case "false":
		v := false
		active = &v
	}

	users, total, err := s.local.ListUsers(
		models.AuthSource(c.Query("auth_source")),
		active,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"users":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get returns a single user.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badID(c)
	}

	user, err := s.local.GetUserByID(id)
	if err != nil {
		return notFound(c)
	}

	return c.JSON(user)
}

// Create creates a new local user.
func (s *Service) Create(c *fiber.Ctx) error {
	req := new(CreateRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	user, err := s.local.CreateUser(
		req.Username,
		req.Email,
		req.Password,
		req.RealName,
		models.PresetFlags(req.Role),
	)
	if err != nil {
		if errors.Is(err, auth.ErrUserNameOrEmailExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "username or email already exists",
			})
		}

		log.Error().Err(err).Msg("Failed to create user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	log.Info().Str("username", user.Username).Msg("User created")

	return c.Status(fiber.StatusCreated).JSON(user)
}

// Update updates a user's profile fields, active flag and role preset.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badID(c)
	}

	req := new(UpdateRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	user, err := s.local.GetUserByID(id)
	if err != nil {
		return notFound(c)
	}

	email := user.Email
	if req.Email != nil {
		email = *req.Email
	}

	realName := user.RealName
	if req.RealName != nil {
		realName = *req.RealName
	}

	if err := s.local.UpdateUser(id, email, realName); err != nil {
		log.Error().Err(err).Uint64("user_id", id).Msg("Failed to update user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if req.Active != nil {
		toggle := s.local.DeactivateUser
		if *req.Active {
			toggle = s.local.ActivateUser
		}

		if err := toggle(id); err != nil {
			log.Error().Err(err).Uint64("user_id", id).Msg("Failed to toggle user")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	if req.Role != nil {
		if err := s.local.SetPermissions(id, models.PresetFlags(*req.Role)); err != nil {
			log.Error().Err(err).Uint64("user_id", id).Msg("Failed to set permissions")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	updated, err := s.local.GetUserByID(id)
	if err != nil {
		return notFound(c)
	}

	return c.JSON(updated)
}

// Delete soft deletes a user. Users cannot delete themselves.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badID(c)
	}

	if id == auth.UserIDFromContext(c) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "cannot delete your own account",
		})
	}

	if _, err := s.local.GetUserByID(id); err != nil {
		return notFound(c)
	}

	if err := s.local.DeleteUser(id); err != nil {
		log.Error().Err(err).Uint64("user_id", id).Msg("Failed to delete user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	log.Info().Uint64("user_id", id).Msg("User deleted")

	return c.JSON(fiber.Map{
		"status": "deleted",
	})
}

// Activate activates a user account.
func (s *Service) Activate(c *fiber.Ctx) error {
	return s.toggleActive(c, true)
}

// Deactivate deactivates a user account.
// Users cannot deactivate themselves.
func (s *Service) Deactivate(c *fiber.Ctx) error {
	return s.toggleActive(c, false)
}

func (s *Service) toggleActive(c *fiber.Ctx, active bool) error {
	id, err := parseID(c)
	if err != nil {
		return badID(c)
	}

	if !active && id == auth.UserIDFromContext(c) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "cannot deactivate your own account",
		})
	}

	if _, err := s.local.GetUserByID(id); err != nil {
		return notFound(c)
	}

	toggle := s.local.DeactivateUser
	if active {
		toggle = s.local.ActivateUser
	}

	if err := toggle(id); err != nil {
		log.Error().Err(err).Uint64("user_id", id).Msg("Failed to toggle user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"active": active,
	})
}

// BulkDelete deletes several users at once. The caller's own account is
// skipped, never deleted.
func (s *Service) BulkDelete(c *fiber.Ctx) error {
	req := new(BulkRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	callerID := auth.UserIDFromContext(c)

	var deleted int

	skipped := make([]uint64, 0)

	for _, id := range req.IDs {
		if id == callerID {
			skipped = append(skipped, id)

			continue
		}

		if _, err := s.local.GetUserByID(id); err != nil {
			skipped = append(skipped, id)

			continue
		}

		if err := s.local.DeleteUser(id); err != nil {
			log.Error().Err(err).Uint64("user_id", id).Msg("Failed to delete user")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		deleted++
	}

	log.Info().Int("deleted", deleted).Msg("Bulk user delete")

	return c.JSON(fiber.Map{
		"deleted": deleted,
		"skipped": skipped,
	})
}

// BulkSetPermissions applies a role preset to several users at once.
func (s *Service) BulkSetPermissions(c *fiber.Ctx) error {
	req := new(BulkPermissionsRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	flags := models.PresetFlags(req.Role)

	var updated int

	skipped := make([]uint64, 0)

	for _, id := range req.IDs {
		if _, err := s.local.GetUserByID(id); err != nil {
			skipped = append(skipped, id)

			continue
		}

		if err := s.local.SetPermissions(id, flags); err != nil {
			log.Error().Err(err).Uint64("user_id", id).Msg("Failed to set permissions")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		updated++
	}

	return c.JSON(fiber.Map{
		"updated": updated,
		"skipped": skipped,
	})
}

// ResetPassword sets a new password for a local user.
func (s *Service) ResetPassword(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badID(c)
	}

	req := new(ResetPasswordRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	user, err := s.local.GetUserByID(id)
	if err != nil {
		return notFound(c)
	}

	if user.AuthSource != models.AuthSourceLocal {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "password is managed by the identity provider",
		})
	}

	if err := s.local.ResetPassword(id, req.Password); err != nil {
		log.Error().Err(err).Uint64("user_id", id).Msg("Failed to reset password")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	log.Info().Uint64("user_id", id).Msg("Password reset by administrator")

	return c.JSON(fiber.Map{
		"status": "password reset",
	})
}

func parseID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

func badID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid user id",
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "user not found",
	})
}
