package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
	"github.com/go-admin-template/go-admin-template/internal/rbac"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.UserPermission{},
		&models.Setting{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func TestSeed_CreatesCatalogAndAdmin(t *testing.T) {
	db := setupTestDB(t)
	cfg := &config.Config{}
	cfg.Auth.InitialPassword = "test-password-123"

	require.NoError(t, seed(cfg, db))

	rbacService := rbac.NewService(db)

	permissions, err := rbacService.ListPermissions()
	require.NoError(t, err)
	assert.Len(t, permissions, len(auth.DefaultPermissions()))

	for _, name := range []string{"admin", "operator", "viewer"} {
		role, err := rbacService.GetRoleByName(name)
		require.NoError(t, err)
		assert.True(t, role.IsSystem)
	}

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.True(t, admin.Active)
	assert.Equal(t, models.PermissionsAdmin, admin.Permissions)

	// The admin role grants everything
	allowed, err := rbacService.HasPermission(admin.ID, auth.ResourceRBAC, auth.ActionWrite)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSeed_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	cfg := &config.Config{}
	cfg.Auth.InitialPassword = "test-password-123"

	require.NoError(t, seed(cfg, db))
	require.NoError(t, seed(cfg, db))

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	assert.Equal(t, int64(1), userCount)

	rbacService := rbac.NewService(db)
	permissions, err := rbacService.ListPermissions()
	require.NoError(t, err)
	assert.Len(t, permissions, len(auth.DefaultPermissions()))
}

func TestSeed_RepairsAdminRoleAssignment(t *testing.T) {
	db := setupTestDB(t)
	cfg := &config.Config{}
	cfg.Auth.InitialPassword = "test-password-123"

	require.NoError(t, seed(cfg, db))

	rbacService := rbac.NewService(db)

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)

	role, err := rbacService.GetRoleByName("admin")
	require.NoError(t, err)
	require.NoError(t, rbacService.RemoveRoleFromUser(admin.ID, role.ID))

	require.NoError(t, seed(cfg, db))

	roles, err := rbacService.UserRoles(admin.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].Name)
}

func TestSeed_SkipsAdminWhenUsersExist(t *testing.T) {
	db := setupTestDB(t)

	existing := &models.User{
		Active:   true,
		Username: "someone",
		Password: models.HashPassword("irrelevant"),
	}
	require.NoError(t, db.Create(existing).Error)

	cfg := &config.Config{}
	require.NoError(t, seed(cfg, db))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "admin").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
