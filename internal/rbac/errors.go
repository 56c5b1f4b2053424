package rbac

import "errors"

var (
	// ErrPermissionExists is returned when creating a permission that already exists.
	ErrPermissionExists = errors.New("permission already exists")

	// ErrPermissionNotFound is returned when a permission cannot be found.
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrRoleExists is returned when creating a role whose name is already taken.
	ErrRoleExists = errors.New("role already exists")

	// ErrRoleNotFound is returned when a role cannot be found.
	ErrRoleNotFound = errors.New("role not found")

	// ErrSystemRole is returned when attempting to delete a system role.
	ErrSystemRole = errors.New("cannot delete system role")
)
