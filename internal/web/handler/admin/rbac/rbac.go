// Package rbac provides the role and permission management JSON API.
//
// Roles bundle permissions and are assigned to users. Per-user overrides
// take precedence over role grants, so an override with granted=false
// denies a permission the user's roles would otherwise allow.
package rbac

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/rbac"
	"github.com/go-admin-template/go-admin-template/internal/web/handler"
)

const (
	// Path is the base path for RBAC management.
	Path = handler.APIPrefix + "/rbac"
)

// RoleRequest is the role create/update request body.
type RoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// PermissionRequest is the permission creation request body.
type PermissionRequest struct {
	Resource    string `json:"resource" validate:"required,min=2,max=100"`
	Action      string `json:"action" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"max=255"`
}

// GrantRequest attaches a permission to a role or user.
type GrantRequest struct {
	PermissionID uint `json:"permission_id" validate:"required"`
	Granted      bool `json:"granted"`
}

// Service provides role, permission and assignment management.
type Service struct {
	cfg       *config.Config
	rbac      *rbac.Service
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, rbacService *rbac.Service, guard *auth.Guard) error {
	if app == nil || cfg == nil || rbacService == nil || guard == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.rbac = rbacService
	s.validator = validator.New()

	read := guard.RequirePermission(auth.ResourceRBAC, auth.ActionRead)
	write := guard.RequirePermission(auth.ResourceRBAC, auth.ActionWrite)

	app.Route(Path, func(router fiber.Router) {
		router.Get("/roles", read, s.ListRoles)
		router.Post("/roles", write, s.CreateRole)
		router.Get("/roles/:id", read, s.GetRole)
		router.Put("/roles/:id", write, s.UpdateRole)
		router.Delete("/roles/:id", write, s.DeleteRole)
		router.Get("/roles/:id/permissions", read, s.RolePermissions)
		router.Post("/roles/:id/permissions", write, s.GrantToRole)
		router.Delete("/roles/:id/permissions/:pid", write, s.RevokeFromRole)

		router.Get("/permissions", read, s.ListPermissions)
		router.Post("/permissions", write, s.CreatePermission)
		router.Delete("/permissions/:id", write, s.DeletePermission)

		router.Get("/users/:uid/roles", read, s.UserRoles)
		router.Post("/users/:uid/roles/:id", write, s.AssignRole)
		router.Delete("/users/:uid/roles/:id", write, s.UnassignRole)
		router.Get("/users/:uid/overrides", read, s.UserOverrides)
		router.Post("/users/:uid/overrides", write, s.GrantToUser)
		router.Delete("/users/:uid/overrides/:pid", write, s.RevokeFromUser)
		router.Get("/users/:uid/effective", read, s.EffectivePermissions)
		router.Get("/users/:uid/check", read, s.Check)
	})

	return nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(c *fiber.Ctx) error {
	roles, err := s.rbac.ListRoles()
	if err != nil {
		return internalError(c, err, "Failed to list roles")
	}

	return c.JSON(fiber.Map{
		"roles": roles,
	})
}

// CreateRole creates a new custom role.
func (s *Service) CreateRole(c *fiber.Ctx) error {
	req := new(RoleRequest)
	if err := s.parse(c, req); err != nil {
		return badRequest(c, err)
	}

	role, err := s.rbac.CreateRole(req.Name, req.Description, false)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleExists) {
			return conflict(c, "role already exists")
		}

		return internalError(c, err, "Failed to create role")
	}

	log.Info().Str("role", role.Name).Msg("Role created")

	return c.Status(fiber.StatusCreated).JSON(role)
}

// GetRole returns a role with its permission grants.
func (s *Service) GetRole(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	role, err := s.rbac.GetRole(id)
	if err != nil {
		return roleError(c, err)
	}

	grants, err := s.rbac.RolePermissions(id)
	if err != nil {
		return internalError(c, err, "Failed to list role permissions")
	}

	return c.JSON(fiber.Map{
		"role":        role,
		"permissions": grants,
	})
}

// UpdateRole updates a role's name or description.
func (s *Service) UpdateRole(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	req := new(struct {
		Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
		Description *string `json:"description" validate:"omitempty,max=255"`
	})
	if err := s.parse(c, req); err != nil {
		return badRequest(c, err)
	}

	role, err := s.rbac.UpdateRole(id, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleExists) {
			return conflict(c, "role already exists")
		}

		return roleError(c, err)
	}

	return c.JSON(role)
}

// DeleteRole deletes a custom role. System roles cannot be deleted.
func (s *Service) DeleteRole(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	if err := s.rbac.DeleteRole(id); err != nil {
		if errors.Is(err, rbac.ErrSystemRole) {
			return conflict(c, "system roles cannot be deleted")
		}

		return roleError(c, err)
	}

	log.Info().Uint("role_id", id).Msg("Role deleted")

	return c.JSON(fiber.Map{
		"status": "deleted",
	})
}

// RolePermissions lists a role's permission grants.
func (s *Service) RolePermissions(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	if _, err := s.rbac.GetRole(id); err != nil {
		return roleError(c, err)
	}

	grants, err := s.rbac.RolePermissions(id)
	if err != nil {
		return internalError(c, err, "Failed to list role permissions")
	}

	return c.JSON(fiber.Map{
		"permissions": grants,
	})
}

// GrantToRole attaches a permission grant to a role.
func (s *Service) GrantToRole(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	req := new(GrantRequest)
	if err := s.parse(c, req); err != nil {
		return badRequest(c, err)
	}

	if _, err := s.rbac.GetRole(id); err != nil {
		return roleError(c, err)
	}

	if _, err := s.rbac.GetPermissionByID(req.PermissionID); err != nil {
		return assignmentError(c, err)
	}

	if err := s.rbac.AssignPermissionToRole(id, req.PermissionID, req.Granted); err != nil {
		return assignmentError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "assigned",
	})
}

// RevokeFromRole removes a permission grant from a role.
func (s *Service) RevokeFromRole(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	pid, err := paramUint(c, "pid")
	if err != nil {
		return badRequest(c, err)
	}

	if err := s.rbac.RemovePermissionFromRole(id, pid); err != nil {
		return internalError(c, err, "Failed to remove role permission")
	}

	return c.JSON(fiber.Map{
		"status": "removed",
	})
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(c *fiber.Ctx) error {
	permissions, err := s.rbac.ListPermissions()
	if err != nil {
		return internalError(c, err, "Failed to list permissions")
	}

	return c.JSON(fiber.Map{
		"permissions": permissions,
	})
}

// CreatePermission registers a new permission.
func (s *Service) CreatePermission(c *fiber.Ctx) error {
	req := new(PermissionRequest)
	if err := s.parse(c, req); err != nil {
		return badRequest(c, err)
	}

	permission, err := s.rbac.CreatePermission(req.Resource, req.Action, req.Description)
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionExists) {
			return conflict(c, "permission already exists")
		}

		return internalError(c, err, "Failed to create permission")
	}

	return c.Status(fiber.StatusCreated).JSON(permission)
}

// DeletePermission removes a permission and all its assignments.
func (s *Service) DeletePermission(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	if _, err := s.rbac.GetPermissionByID(id); err != nil {
		return assignmentError(c, err)
	}

	if err := s.rbac.DeletePermission(id); err != nil {
		return internalError(c, err, "Failed to delete permission")
	}

	return c.JSON(fiber.Map{
		"status": "deleted",
	})
}

// UserRoles lists the roles assigned to a user.
func (s *Service) UserRoles(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	roles, err := s.rbac.UserRoles(uid)
	if err != nil {
		return internalError(c, err, "Failed to list user roles")
	}

	return c.JSON(fiber.Map{
		"roles": roles,
	})
}

// AssignRole assigns a role to a user.
func (s *Service) AssignRole(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	if _, err := s.rbac.GetRole(id); err != nil {
		return roleError(c, err)
	}

	if err := s.rbac.AssignRoleToUser(uid, id); err != nil {
		return internalError(c, err, "Failed to assign role")
	}

	return c.JSON(fiber.Map{
		"status": "assigned",
	})
}

// UnassignRole removes a role from a user.
func (s *Service) UnassignRole(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	id, err := paramUint(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	if err := s.rbac.RemoveRoleFromUser(uid, id); err != nil {
		return internalError(c, err, "Failed to remove user role")
	}

	return c.JSON(fiber.Map{
		"status": "removed",
	})
}

// UserOverrides lists a user's per-user permission overrides.
func (s *Service) UserOverrides(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	overrides, err := s.rbac.UserOverrides(uid)
	if err != nil {
		return internalError(c, err, "Failed to list user overrides")
	}

	return c.JSON(fiber.Map{
		"overrides": overrides,
	})
}

// GrantToUser sets a per-user permission override.
func (s *Service) GrantToUser(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	req := new(GrantRequest)
	if err := s.parse(c, req); err != nil {
		return badRequest(c, err)
	}

	if _, err := s.rbac.GetPermissionByID(req.PermissionID); err != nil {
		return assignmentError(c, err)
	}

	if err := s.rbac.AssignPermissionToUser(uid, req.PermissionID, req.Granted); err != nil {
		return assignmentError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "assigned",
	})
}

// RevokeFromUser removes a per-user permission override, restoring the
// user's role-derived access for that permission.
func (s *Service) RevokeFromUser(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	pid, err := paramUint(c, "pid")
	if err != nil {
		return badRequest(c, err)
	}

	if err := s.rbac.RemovePermissionFromUser(uid, pid); err != nil {
		return internalError(c, err, "Failed to remove user override")
	}

	return c.JSON(fiber.Map{
		"status": "removed",
	})
}

// EffectivePermissions returns the user's merged permission set, with
// overrides applied on top of role grants.
func (s *Service) EffectivePermissions(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	permissions, err := s.rbac.EffectivePermissions(uid)
	if err != nil {
		return internalError(c, err, "Failed to resolve effective permissions")
	}

	return c.JSON(fiber.Map{
		"permissions": permissions,
	})
}

// Check answers whether a user holds a single resource/action permission.
func (s *Service) Check(c *fiber.Ctx) error {
	uid, err := paramUserID(c)
	if err != nil {
		return badRequest(c, err)
	}

	resource := c.Query("resource")
	action := c.Query("action")

	if resource == "" || action == "" {
		return badRequest(c, errors.New("resource and action query parameters are required"))
	}

	allowed, err := s.rbac.HasPermission(uid, resource, action)
	if err != nil {
		return internalError(c, err, "Failed to check permission")
	}

	return c.JSON(fiber.Map{
		"resource": resource,
		"action":   action,
		"allowed":  allowed,
	})
}

func (s *Service) parse(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errors.New("invalid request body")
	}

	return s.validator.Struct(req)
}

func paramUint(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, errors.New("invalid " + name + " parameter")
	}

	return uint(v), nil
}

func paramUserID(c *fiber.Ctx) (uint64, error) {
	v, err := strconv.ParseUint(c.Params("uid"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid uid parameter")
	}

	return v, nil
}

func roleError(c *fiber.Ctx, err error) error {
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "role not found",
		})
	}

	return internalError(c, err, "Role operation failed")
}

func assignmentError(c *fiber.Ctx, err error) error {
	if errors.Is(err, rbac.ErrRoleNotFound) || errors.Is(err, rbac.ErrPermissionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return internalError(c, err, "Assignment operation failed")
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func conflict(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"error": msg,
	})
}

func internalError(c *fiber.Ctx, err error, msg string) error {
	log.Error().Err(err).Msg(msg)

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
