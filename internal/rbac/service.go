package rbac

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

// PermissionGrant is a permission together with its granted flag and the
// source of the grant ("role" or "override").
type PermissionGrant struct {
	models.Permission

	Granted bool   `json:"granted"`
	Source  string `json:"source"`
}

// Service provides authorization functionality on top of the RBAC tables.
type Service struct {
	db *gorm.DB
}

// NewService creates a new RBAC service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreatePermission creates a new permission identified by resource and action.
func (s *Service) CreatePermission(resource, action, description string) (*models.Permission, error) {
	perm := models.Permission{
		Resource:    resource,
		Action:      action,
		Description: description,
	}

	var existing models.Permission

	err := s.db.Where("resource = ? AND action = ?", resource, action).First(&existing).Error
	if err == nil {
		return nil, ErrPermissionExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing permission: %w", err)
	}

	if err := s.db.Create(&perm).Error; err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	return &perm, nil
}

// GetPermission retrieves a permission by resource and action.
func (s *Service) GetPermission(resource, action string) (*models.Permission, error) {
	var perm models.Permission

	err := s.db.Where("resource = ? AND action = ?", resource, action).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query permission: %w", err)
	}

	return &perm, nil
}

// GetPermissionByID retrieves a permission by ID.
func (s *Service) GetPermissionByID(id uint) (*models.Permission, error) {
	var perm models.Permission

	err := s.db.First(&perm, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query permission: %w", err)
	}

	return &perm, nil
}

// ListPermissions lists all permissions ordered by resource then action.
func (s *Service) ListPermissions() ([]models.Permission, error) {
	var perms []models.Permission

	if err := s.db.Order("resource, action").Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}

	return perms, nil
}

// DeletePermission deletes a permission and its assignments.
func (s *Service) DeletePermission(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to delete role assignments: %w", err)
		}

		if err := tx.Where("permission_id = ?", id).Delete(&models.UserPermission{}).Error; err != nil {
			return fmt.Errorf("failed to delete user overrides: %w", err)
		}

		if err := tx.Delete(&models.Permission{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete permission: %w", err)
		}

		return nil
	})
}

// CreateRole creates a new role.
func (s *Service) CreateRole(name, description string, isSystem bool) (*models.Role, error) {
	var existing models.Role

	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return nil, ErrRoleExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing role: %w", err)
	}

	role := models.Role{
		Name:        name,
		Description: description,
		IsSystem:    isSystem,
	}

	if err := s.db.Create(&role).Error; err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return &role, nil
}

// GetRole retrieves a role by ID.
func (s *Service) GetRole(id uint) (*models.Role, error) {
	var role models.Role

	err := s.db.First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query role: %w", err)
	}

	return &role, nil
}

// GetRoleByName retrieves a role by name.
func (s *Service) GetRoleByName(name string) (*models.Role, error) {
	var role models.Role

	err := s.db.Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query role: %w", err)
	}

	return &role, nil
}

// ListRoles lists all roles ordered by name.
func (s *Service) ListRoles() ([]models.Role, error) {
	var roles []models.Role

	if err := s.db.Order("name").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

// UpdateRole updates a role's name and/or description. Nil means keep.
func (s *Service) UpdateRole(id uint, name, description *string) (*models.Role, error) {
	role, err := s.GetRole(id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		role.Name = *name
	}

	if description != nil {
		role.Description = *description
	}

	if err := s.db.Save(role).Error; err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	return role, nil
}

// DeleteRole deletes a role unless it is a system role.
func (s *Service) DeleteRole(id uint) error {
	role, err := s.GetRole(id)
	if err != nil {
		return err
	}

	if role.IsSystem {
		return ErrSystemRole
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to delete role permissions: %w", err)
		}

		if err := tx.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("failed to delete role assignments: %w", err)
		}

		if err := tx.Delete(&models.Role{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}

		return nil
	})
}

// AssignPermissionToRole assigns a permission to a role, updating the granted
// flag when the assignment already exists.
func (s *Service) AssignPermissionToRole(roleID, permissionID uint, granted bool) error {
	rp := models.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		Granted:      granted,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role_id"}, {Name: "permission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted"}),
	}).Create(&rp).Error
	if err != nil {
		return fmt.Errorf("failed to assign permission to role: %w", err)
	}

	return nil
}

// RemovePermissionFromRole removes a permission assignment from a role.
func (s *Service) RemovePermissionFromRole(roleID, permissionID uint) error {
	return s.db.Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&models.RolePermission{}).Error
}

// RolePermissions returns all permissions assigned to a role.
func (s *Service) RolePermissions(roleID uint) ([]PermissionGrant, error) {
	var grants []PermissionGrant

	err := s.db.Table("permissions").
		Select("permissions.*, role_permissions.granted, 'role' as source").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.resource, permissions.action").
		Scan(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}

	return grants, nil
}

// AssignRoleToUser assigns a role to a user. Already-assigned roles are ignored.
func (s *Service) AssignRoleToUser(userID uint64, roleID uint) error {
	ur := models.UserRole{UserID: userID, RoleID: roleID}

	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ur).Error
	if err != nil {
		return fmt.Errorf("failed to assign role to user: %w", err)
	}

	return nil
}

// RemoveRoleFromUser removes a role assignment from a user.
func (s *Service) RemoveRoleFromUser(userID uint64, roleID uint) error {
	return s.db.Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&models.UserRole{}).Error
}

// UserRoles returns all roles assigned to a user ordered by name.
func (s *Service) UserRoles(userID uint64) ([]models.Role, error) {
	var roles []models.Role

	err := s.db.Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}

	return roles, nil
}

// AssignPermissionToUser records a per-user permission override.
func (s *Service) AssignPermissionToUser(userID uint64, permissionID uint, granted bool) error {
	up := models.UserPermission{
		UserID:       userID,
		PermissionID: permissionID,
		Granted:      granted,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "permission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted"}),
	}).Create(&up).Error
	if err != nil {
		return fmt.Errorf("failed to assign permission to user: %w", err)
	}

	return nil
}

// RemovePermissionFromUser removes a per-user permission override.
func (s *Service) RemovePermissionFromUser(userID uint64, permissionID uint) error {
	return s.db.Where("user_id = ? AND permission_id = ?", userID, permissionID).
		Delete(&models.UserPermission{}).Error
}

// UserOverrides returns all per-user permission overrides for a user.
func (s *Service) UserOverrides(userID uint64) ([]PermissionGrant, error) {
	var grants []PermissionGrant

	err := s.db.Table("permissions").
		Select("permissions.*, user_permissions.granted, 'override' as source").
		Joins("JOIN user_permissions ON user_permissions.permission_id = permissions.id").
		Where("user_permissions.user_id = ?", userID).
		Order("permissions.resource, permissions.action").
		Scan(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user overrides: %w", err)
	}

	return grants, nil
}

// HasPermission checks if a user has a specific permission.
//
// Resolution order: per-user override first, then role grants, then deny.
func (s *Service) HasPermission(userID uint64, resource, action string) (bool, error) {
	var overrides []bool

	err := s.db.Table("user_permissions").
		Joins("JOIN permissions ON permissions.id = user_permissions.permission_id").
		Where("user_permissions.user_id = ? AND permissions.resource = ? AND permissions.action = ?",
			userID, resource, action).
		Limit(1).
		Pluck("user_permissions.granted", &overrides).Error
	if err != nil {
		return false, fmt.Errorf("failed to check permission override: %w", err)
	}

	if len(overrides) == 1 {
		return overrides[0], nil
	}

	var count int64

	err = s.db.Table("role_permissions").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ? AND permissions.resource = ? AND permissions.action = ? AND role_permissions.granted = ?",
			userID, resource, action, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check role permission: %w", err)
	}

	return count > 0, nil
}

// HasAnyPermission checks if a user has at least one of the given actions on a resource.
func (s *Service) HasAnyPermission(userID uint64, resource string, actions []string) (bool, error) {
	for _, action := range actions {
		has, err := s.HasPermission(userID, resource, action)
		if err != nil {
			return false, err
		}

		if has {
			return true, nil
		}
	}

	return false, nil
}

// HasAllPermissions checks if a user has all of the given actions on a resource.
func (s *Service) HasAllPermissions(userID uint64, resource string, actions []string) (bool, error) {
	for _, action := range actions {
		has, err := s.HasPermission(userID, resource, action)
		if err != nil {
			return false, err
		}

		if !has {
			return false, nil
		}
	}

	return true, nil
}

// EffectivePermissions returns the granted permissions for a user, combining
// role grants with per-user overrides (overrides win).
func (s *Service) EffectivePermissions(userID uint64) ([]PermissionGrant, error) {
	type key struct{ resource, action string }

	merged := make(map[key]PermissionGrant)

	var roleGrants []PermissionGrant

	err := s.db.Table("permissions").
		Select("DISTINCT permissions.*, role_permissions.granted, 'role' as source").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Scan(&roleGrants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get role grants: %w", err)
	}

	for _, g := range roleGrants {
		k := key{g.Resource, g.Action}
		if existing, ok := merged[k]; !ok || (g.Granted && !existing.Granted) {
			merged[k] = g
		}
	}

	overrides, err := s.UserOverrides(userID)
	if err != nil {
		return nil, err
	}

	for _, g := range overrides {
		merged[key{g.Resource, g.Action}] = g
	}

	granted := make([]PermissionGrant, 0, len(merged))

	for _, g := range merged {
		if g.Granted {
			granted = append(granted, g)
		}
	}

	sort.Slice(granted, func(i, j int) bool {
		if granted[i].Resource != granted[j].Resource {
			return granted[i].Resource < granted[j].Resource
		}

		return granted[i].Action < granted[j].Action
	})

	return granted, nil
}
