package oidc

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/oidc"
	"github.com/go-admin-template/go-admin-template/internal/web/handler"
	"github.com/go-admin-template/go-admin-template/internal/web/handler/login"
	"github.com/go-admin-template/go-admin-template/internal/web/session"
)

const (
	// BasePath is the prefix for all federated login routes.
	BasePath = handler.RootPath + "auth/oidc"
)

// ProviderInfo is the public description of an enabled provider.
// Client credentials never appear here.
type ProviderInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

// CallbackRequest is the callback request body for POST callbacks.
type CallbackRequest struct {
	Code  string `json:"code" form:"code"`
	State string `json:"state" form:"state"`
}

// Service is the federated login handler service.
type Service struct {
	cfg  *config.Config
	flow *oidc.Flow
}

// Handler is the federated login handler.
var Handler = Service{}

// Init initializes the federated login handler.
// A nil flow disables the routes without failing startup.
func (s *Service) Init(app *fiber.App, cfg *config.Config, flow *oidc.Flow) error {
	if app == nil || cfg == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	if flow == nil {
		log.Info().Msg("OIDC authentication is disabled")
		return nil
	}

	s.cfg = cfg
	s.flow = flow

	app.Get(BasePath+"/providers", s.Providers)
	app.Get(BasePath+"/:provider/login", s.Login)
	app.Get(BasePath+"/:provider/callback", s.Callback)
	app.Post(BasePath+"/:provider/callback", s.Callback)
	app.Post(BasePath+"/:provider/logout", s.Logout)

	return nil
}

// Providers lists the enabled providers for the login screen.
func (s *Service) Providers(c *fiber.Ctx) error {
	enabled := s.flow.Registry().ListEnabled()

	providers := make([]ProviderInfo, 0, len(enabled))
	for _, p := range enabled {
		providers = append(providers, ProviderInfo{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Icon:         p.Icon,
			DisplayOrder: p.DisplayOrder,
		})
	}

	return c.JSON(fiber.Map{
		"providers":               providers,
		"allow_traditional_login": s.flow.Registry().AllowTraditionalLogin(),
	})
}

// Login initiates the authorization code flow for a provider.
func (s *Service) Login(c *fiber.Ctx) error {
	redirect, err := s.flow.InitiateLogin(c.Context(), c.Params("provider"))
	if err != nil {
		return s.flowError(c, err)
	}

	return c.JSON(redirect)
}

// Callback completes the authorization code flow.
// The code and state arrive as query parameters on GET redirects from the
// provider, or in the body on POST from the frontend.
func (s *Service) Callback(c *fiber.Ctx) error {
	req := CallbackRequest{
		Code:  c.Query("code"),
		State: c.Query("state"),
	}

	if req.Code == "" && req.State == "" {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}

	if req.Code == "" || req.State == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code and state are required",
		})
	}

	result, err := s.flow.HandleCallback(c.Context(), c.Params("provider"), req.Code, req.State)
	if err != nil {
		return s.flowError(c, err)
	}

	if err := login.WriteSessionCookie(c, s.cfg, result.User); err != nil {
		log.Error().Err(err).Msg("Failed to write session")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(login.Response{
		Token: result.Token,
		User:  result.User,
	})
}

// Logout tears down the local session and points the client at the
// provider's end session endpoint when the discovery document advertises
// one. Upstream trouble never blocks the local logout.
func (s *Service) Logout(c *fiber.Ctx) error {
	sessionID := c.Cookies("session")
	if sessionID != "" {
		if err := session.Store.Storage.Delete(sessionID); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     "session",
		Value:    "",
		MaxAge:   -1,
		Secure:   !s.cfg.DevMode,
		HTTPOnly: true,
		SameSite: "Lax",
	})

	response := fiber.Map{
		"status": "logged out",
	}

	endSession, err := s.flow.EndSessionURL(c.Context(), c.Params("provider"))
	if err != nil {
		log.Warn().Err(err).Str("provider", c.Params("provider")).
			Msg("Could not resolve end session endpoint")
	} else if endSession != "" {
		response["end_session_url"] = endSession
	}

	return c.JSON(response)
}

// flowError translates flow errors into structured HTTP responses.
func (s *Service) flowError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, oidc.ErrProviderNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, oidc.ErrProviderDisabled):
		status = fiber.StatusForbidden
	case errors.Is(err, oidc.ErrMalformedState),
		errors.Is(err, oidc.ErrProviderMismatch),
		errors.Is(err, oidc.ErrTokenExchangeFailed),
		errors.Is(err, oidc.ErrIdentityVerificationFailed),
		errors.Is(err, oidc.ErrClaimMappingFailed):
		status = fiber.StatusBadRequest
	case errors.Is(err, oidc.ErrProvisioningDisabled):
		status = fiber.StatusForbidden
	case errors.Is(err, oidc.ErrUpstreamUnavailable):
		status = fiber.StatusBadGateway
	case errors.Is(err, oidc.ErrConfig):
		status = fiber.StatusInternalServerError
	}

	log.Warn().Err(err).Int("status", status).Msg("Federated login failed")

	return c.Status(status).JSON(fiber.Map{
		"status": status,
		"detail": err.Error(),
	})
}
