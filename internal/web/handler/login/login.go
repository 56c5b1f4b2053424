package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
	"github.com/go-admin-template/go-admin-template/internal/web/session"
)

const (
	// Path is the path to the login endpoint.
	Path = "/auth/login"
)

// Request is the login request body.
type Request struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response is the successful login response body.
type Response struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service is the login handler service.
type Service struct {
	cfg    *config.Config
	issuer *auth.TokenIssuer
	local  *auth.LocalProvider
	ldap   *auth.LDAPProvider

	// allowTraditional gates username/password login; the OIDC registry's
	// global settings can turn it off even when local auth is configured.
	allowTraditional bool
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	issuer *auth.TokenIssuer,
	allowTraditional bool,
) error {
	if app == nil || cfg == nil || db == nil || issuer == nil {
		return ErrNilDependency
	}

	s.cfg = cfg
	s.issuer = issuer
	s.allowTraditional = allowTraditional
	s.local = auth.NewLocalProvider(db, cfg.Auth.LocalDB.Enabled)

	if cfg.Auth.LDAP.Enabled {
		ldapProvider, err := auth.NewLDAPProvider(&cfg.Auth.LDAP, db)
		if err != nil {
			log.Warn().Err(err).Msg("LDAP authentication unavailable")
		} else {
			s.ldap = ldapProvider
		}
	}

	app.Post(Path, s.Post)

	return nil
}

// Post handles the login request.
func (s *Service) Post(c *fiber.Ctx) error {
	if !s.allowTraditional {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "username/password login is disabled",
		})
	}

	req := new(Request)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and password are required",
		})
	}

	user, err := s.authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserAccountDisabled) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "account is disabled",
			})
		}

		log.Warn().Str("username", req.Username).Err(err).Msg("Login failed")

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid username or password",
		})
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if err := WriteSessionCookie(c, s.cfg, user); err != nil {
		log.Error().Err(err).Msg("Failed to write session")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	log.Info().Str("username", user.Username).Str("auth_source", string(user.AuthSource)).
		Msg("User logged in")

	return c.JSON(Response{
		Token: token,
		User:  user,
	})
}

// authenticate tries the local database first, then falls back to LDAP.
func (s *Service) authenticate(username, password string) (*models.User, error) {
	user, err := s.local.Authenticate(username, password)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, auth.ErrUserAccountDisabled) {
		return nil, err
	}

	if s.ldap != nil {
		return s.ldap.Authenticate(username, password)
	}

	return nil, err
}

// WriteSessionCookie creates a server-side session and sets its cookie.
// It is shared with the federated login callback.
func WriteSessionCookie(c *fiber.Ctx, cfg *config.Config, user *models.User) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		return err
	}

	userSession := &session.Data{User: *user}
	if err := userSession.Write(sessionID, cfg.Webserver.Session.ExpiryTime); err != nil {
		return err
	}

	cookie := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   !cfg.DevMode,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	c.Cookie(cookie)

	return nil
}
