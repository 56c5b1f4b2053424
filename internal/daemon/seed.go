package daemon

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/auth"
	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
	"github.com/go-admin-template/go-admin-template/internal/rbac"
)

// systemRoles are created at startup and cannot be deleted through the API.
// The map value lists resource/action pairs granted to the role.
var systemRoles = map[string]struct {
	description string
	grants      [][2]string
}{
	"admin": {
		description: "Full administrative access",
		grants:      nil, // all permissions, resolved at seed time
	},
	"operator": {
		description: "Manage users and read configuration",
		grants: [][2]string{
			{auth.ResourceUsers, auth.ActionRead},
			{auth.ResourceUsers, auth.ActionWrite},
			{auth.ResourceSettings, auth.ActionRead},
			{auth.ResourceRBAC, auth.ActionRead},
			{auth.ResourceProfile, auth.ActionRead},
			{auth.ResourceProfile, auth.ActionWrite},
		},
	},
	"viewer": {
		description: "Read-only access",
		grants: [][2]string{
			{auth.ResourceUsers, auth.ActionRead},
			{auth.ResourceSettings, auth.ActionRead},
			{auth.ResourceRBAC, auth.ActionRead},
			{auth.ResourceProfile, auth.ActionRead},
			{auth.ResourceProfile, auth.ActionWrite},
		},
	},
}

// seed creates the permission catalog, the system roles and the initial
// admin account. It runs on every start and repairs missing grants.
func seed(cfg *config.Config, db *gorm.DB) error {
	rbacService := rbac.NewService(db)

	if err := seedPermissions(rbacService); err != nil {
		return err
	}

	if err := seedRoles(rbacService); err != nil {
		return err
	}

	return seedAdmin(cfg, db, rbacService)
}

func seedPermissions(rbacService *rbac.Service) error {
	for _, def := range auth.DefaultPermissions() {
		_, err := rbacService.CreatePermission(def.Resource, def.Action, def.Description)
		if err != nil && !errors.Is(err, rbac.ErrPermissionExists) {
			return err
		}
	}

	return nil
}

func seedRoles(rbacService *rbac.Service) error {
	for name, def := range systemRoles {
		role, err := rbacService.GetRoleByName(name)
		if errors.Is(err, rbac.ErrRoleNotFound) {
			role, err = rbacService.CreateRole(name, def.description, true)
		}

		if err != nil {
			return err
		}

		grants := def.grants
		if name == "admin" {
			for _, p := range auth.DefaultPermissions() {
				grants = append(grants, [2]string{p.Resource, p.Action})
			}
		}

		for _, grant := range grants {
			permission, err := rbacService.GetPermission(grant[0], grant[1])
			if err != nil {
				return err
			}

			if err := rbacService.AssignPermissionToRole(role.ID, permission.ID, true); err != nil {
				return err
			}
		}
	}

	return nil
}

// seedAdmin creates the initial admin account when the user table is empty
// and makes sure it holds the admin role.
func seedAdmin(cfg *config.Config, db *gorm.DB, rbacService *rbac.Service) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	username := cfg.Auth.InitialUsername
	if username == "" {
		username = "admin"
	}

	if count == 0 {
		password := cfg.Auth.InitialPassword
		if password == "" {
			password = "changeme"

			log.Warn().
				Str("username", username).
				Msg("No initial password configured, using default. Change it immediately.")
		}

		user := &models.User{
			Active:      true,
			Username:    username,
			Password:    models.HashPassword(password),
			RealName:    "Administrator",
			Permissions: models.PermissionsAdmin,
			AuthSource:  models.AuthSourceLocal,
		}
		if err := db.Create(user).Error; err != nil {
			return err
		}

		log.Info().Str("username", username).Msg("Created initial admin account")
	}

	// Repair the admin role assignment even for pre-existing accounts
	var admin models.User
	if err := db.Where("username = ?", username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}

		return err
	}

	role, err := rbacService.GetRoleByName("admin")
	if err != nil {
		return err
	}

	return rbacService.AssignRoleToUser(admin.ID, role.ID)
}
