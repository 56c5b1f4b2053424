package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestService_Get(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	service := &Service{db: db}

	app := fiber.New()
	app.Get(Path, service.Get)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, Path, nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestService_Get_Draining(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	var alive atomic.Bool

	service := &Service{db: db, alive: &alive}

	app := fiber.New()
	app.Get(Path, service.Get)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, Path, nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "shutting down", body["status"])
}

func TestService_Root(t *testing.T) {
	service := &Service{}

	app := fiber.New()
	app.Get(RootPath, service.Root)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, RootPath, nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "go-admin-template", body["service"])
	assert.Equal(t, "ok", body["status"])
}

func TestService_Get_DatabaseDown(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	service := &Service{db: db}

	app := fiber.New()
	app.Get(Path, service.Get)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, Path, nil))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
