package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

func testProvisioner(t *testing.T) (*Provisioner, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}))

	return NewProvisioner(db), db
}

func TestResolveUserAutoProvision(t *testing.T) {
	p, _ := testProvisioner(t)

	provider := &Provider{ID: "corp", AutoProvision: true, DefaultRole: "user"}
	identity := &MappedIdentity{
		Provider:    "corp",
		Username:    "jdoe",
		Email:       "jdoe@example.com",
		DisplayName: "John Doe",
	}

	user, err := p.ResolveUser(provider, identity)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", user.Username)
	assert.Equal(t, "corp", user.Provider)
	assert.Equal(t, models.AuthSourceOIDC, user.AuthSource)
	assert.Equal(t, models.PermissionsUser, user.Permissions)
	assert.True(t, user.Active)
}

func TestResolveUserProvisioningDisabled(t *testing.T) {
	p, db := testProvisioner(t)

	provider := &Provider{ID: "corp", AutoProvision: false}
	identity := &MappedIdentity{Provider: "corp", Username: "jdoe"}

	_, err := p.ResolveUser(provider, identity)
	assert.ErrorIs(t, err, ErrProvisioningDisabled)

	// no record was written
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestResolveUserUsernamePrefix(t *testing.T) {
	p, _ := testProvisioner(t)

	provider := &Provider{
		ID:             "corp",
		AutoProvision:  true,
		DefaultRole:    "viewer",
		UsernamePrefix: "sso_",
	}
	identity := &MappedIdentity{Provider: "corp", Username: "jdoe"}

	user, err := p.ResolveUser(provider, identity)
	require.NoError(t, err)
	assert.Equal(t, "sso_jdoe", user.Username)

	// second login resolves the same user
	again, err := p.ResolveUser(provider, identity)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestResolveUserKeepsPermissions(t *testing.T) {
	p, _ := testProvisioner(t)

	provider := &Provider{ID: "corp", AutoProvision: true, DefaultRole: "admin"}
	identity := &MappedIdentity{Provider: "corp", Username: "jdoe", DisplayName: "John"}

	user, err := p.ResolveUser(provider, identity)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionsAdmin, user.Permissions)

	// demote the user locally; a later login must not restore the default role
	provider.DefaultRole = "admin"
	require.NoError(t, p.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("permissions", models.PermissionsViewer).Error)

	again, err := p.ResolveUser(provider, identity)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionsViewer, again.Permissions)
}

func TestResolveUserDisabledAccount(t *testing.T) {
	p, db := testProvisioner(t)

	provider := &Provider{ID: "corp", AutoProvision: true, DefaultRole: "user"}
	identity := &MappedIdentity{Provider: "corp", Username: "jdoe"}

	user, err := p.ResolveUser(provider, identity)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("active", false).Error)

	_, err = p.ResolveUser(provider, identity)
	assert.Error(t, err)
}

func TestResolveUserUsernameCollision(t *testing.T) {
	p, _ := testProvisioner(t)

	alpha := &Provider{ID: "alpha", AutoProvision: true, DefaultRole: "user"}
	beta := &Provider{ID: "beta", AutoProvision: true, DefaultRole: "user"}
	identity := &MappedIdentity{Username: "jdoe"}

	_, err := p.ResolveUser(alpha, identity)
	require.NoError(t, err)

	// usernames are globally unique, a second provider cannot claim the same one
	_, err = p.ResolveUser(beta, identity)
	assert.Error(t, err)
}
