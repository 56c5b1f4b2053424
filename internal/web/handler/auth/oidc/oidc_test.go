package oidc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	sessionmemory "github.com/gofiber/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
	"github.com/go-admin-template/go-admin-template/internal/oidc"
	"github.com/go-admin-template/go-admin-template/internal/web/session"
)

const registryYAML = `
providers:
  corp:
    enabled: true
    name: "Corporate SSO"
    icon: "building"
    display_order: 1
    discovery_url: "https://idp.invalid/realms/corp"
    client_id: "client"
    client_secret: "secret"
    redirect_uri: "https://app.invalid/auth/oidc/corp/callback"
  legacy:
    enabled: false
    discovery_url: "https://idp.invalid/realms/legacy"
    client_id: "client"
    client_secret: "secret"
    redirect_uri: "https://app.invalid/auth/oidc/legacy/callback"
global_settings:
  allow_traditional_login: false
`

type staticIssuer struct{}

func (staticIssuer) Issue(_ *models.User) (string, error) {
	return "token", nil
}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	registry, err := oidc.ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)

	flow := oidc.NewFlow(
		registry,
		oidc.NewCache(t.TempDir()),
		oidc.NewProvisioner(db),
		staticIssuer{},
	)

	session.Init(sessionmemory.New())

	service := &Service{
		cfg:  &config.Config{DevMode: true},
		flow: flow,
	}

	app := fiber.New()
	app.Get(BasePath+"/providers", service.Providers)
	app.Get(BasePath+"/:provider/login", service.Login)
	app.Get(BasePath+"/:provider/callback", service.Callback)
	app.Post(BasePath+"/:provider/logout", service.Logout)

	return app
}

func TestService_Providers(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, BasePath+"/providers", nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Providers             []map[string]interface{} `json:"providers"`
		AllowTraditionalLogin bool                     `json:"allow_traditional_login"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	// Disabled providers are not listed
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "corp", body.Providers[0]["id"])
	assert.Equal(t, "Corporate SSO", body.Providers[0]["name"])
	assert.False(t, body.AllowTraditionalLogin)

	// Client credentials never leave the server
	_, leaked := body.Providers[0]["client_secret"]
	assert.False(t, leaked)
}

func TestService_Login_UnknownProvider(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, BasePath+"/ghost/login", nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestService_Login_DisabledProvider(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, BasePath+"/legacy/login", nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestService_Callback_MissingParameters(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, BasePath+"/corp/callback?code=abc", nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestService_Callback_ForgedState(t *testing.T) {
	app := setupApp(t)

	target := BasePath + "/corp/callback?code=abc&state=corp:forged"
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestService_Callback_ProviderMismatch(t *testing.T) {
	app := setupApp(t)

	target := BasePath + "/corp/callback?code=abc&state=legacy:forged"
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestService_Logout_UpstreamUnreachable(t *testing.T) {
	app := setupApp(t)

	// The provider cannot be reached, the local logout still succeeds
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, BasePath+"/corp/logout", nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "logged out", body["status"])
	_, hasEndSession := body["end_session_url"]
	assert.False(t, hasEndSession)
}
