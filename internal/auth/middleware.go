package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/go-admin-template/go-admin-template/internal/rbac"
	"github.com/go-admin-template/go-admin-template/internal/web/session"
)

// LocalsUserID is the fiber.Locals key holding the authenticated user ID.
const LocalsUserID = "user_id"

// Guard provides Fiber middleware for authentication and permission checks.
//
// A request is authenticated either by a bearer token in the Authorization
// header or by a server-side session cookie.
type Guard struct {
	rbac   *rbac.Service
	tokens *TokenIssuer
}

// NewGuard creates a new guard.
func NewGuard(rbacService *rbac.Service, tokens *TokenIssuer) *Guard {
	return &Guard{
		rbac:   rbacService,
		tokens: tokens,
	}
}

// UserID resolves the authenticated user ID from the request.
// It returns false when the request carries no valid credentials.
func (g *Guard) UserID(c *fiber.Ctx) (uint64, bool) {
	// Bearer token first
	authHeader := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		claims, err := g.tokens.Verify(token)
		if err != nil {
			return 0, false
		}

		id, err := claims.UserID()
		if err != nil {
			return 0, false
		}

		return id, true
	}

	// Session cookie fallback
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return 0, false
	}

	sessionData := new(session.Data)
	if err := sessionData.Read(sessionID); err != nil {
		return 0, false
	}

	if sessionData.User.ID == 0 {
		return 0, false
	}

	return sessionData.User.ID, true
}

// RequireAuthenticated ensures the request carries valid credentials and
// stores the user ID in fiber.Locals.
func (g *Guard) RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := g.UserID(c)
		if !ok {
			return unauthorized(c)
		}

		c.Locals(LocalsUserID, userID)

		return c.Next()
	}
}

// RequirePermission creates middleware that requires a specific permission.
func (g *Guard) RequirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := g.UserID(c)
		if !ok {
			return unauthorized(c)
		}

		hasPermission, err := g.rbac.HasPermission(userID, resource, action)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", userID).
				Str("resource", resource).Str("action", action).
				Msg("Failed to check permission")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		if !hasPermission {
			log.Warn().Uint64("user_id", userID).
				Str("resource", resource).Str("action", action).
				Msg("User lacks required permission")

			return forbidden(c)
		}

		c.Locals(LocalsUserID, userID)

		return c.Next()
	}
}

// RequireAnyPermission creates middleware that requires at least one of the
// given actions on a resource.
func (g *Guard) RequireAnyPermission(resource string, actions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := g.UserID(c)
		if !ok {
			return unauthorized(c)
		}

		hasPermission, err := g.rbac.HasAnyPermission(userID, resource, actions)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", userID).
				Str("resource", resource).Strs("actions", actions).
				Msg("Failed to check permissions")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		if !hasPermission {
			return forbidden(c)
		}

		c.Locals(LocalsUserID, userID)

		return c.Next()
	}
}

// RequireAllPermissions creates middleware that requires all the given
// actions on a resource.
func (g *Guard) RequireAllPermissions(resource string, actions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := g.UserID(c)
		if !ok {
			return unauthorized(c)
		}

		hasPermissions, err := g.rbac.HasAllPermissions(userID, resource, actions)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", userID).
				Str("resource", resource).Strs("actions", actions).
				Msg("Failed to check permissions")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		if !hasPermissions {
			return forbidden(c)
		}

		c.Locals(LocalsUserID, userID)

		return c.Next()
	}
}

// UserIDFromContext returns the user ID stored by the guard middleware.
func UserIDFromContext(c *fiber.Ctx) uint64 {
	if id, ok := c.Locals(LocalsUserID).(uint64); ok {
		return id
	}

	return 0
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized",
	})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "forbidden",
	})
}
