package auth

// Resource constants name the protected areas of the application.
const (
	// ResourceUsers covers user account management.
	ResourceUsers = "users"
	// ResourceSettings covers application-wide settings.
	ResourceSettings = "settings"
	// ResourceRBAC covers role and permission management.
	ResourceRBAC = "rbac"
	// ResourceProfile covers a user's own profile.
	ResourceProfile = "profile"
)

// Action constants name the operations on a resource.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// PermissionDef describes a permission to be seeded at startup.
type PermissionDef struct {
	Resource    string
	Action      string
	Description string
}

// DefaultPermissions is the catalog of permissions created on first start.
func DefaultPermissions() []PermissionDef {
	return []PermissionDef{
		{ResourceUsers, ActionRead, "View user accounts"},
		{ResourceUsers, ActionWrite, "Create and modify user accounts"},
		{ResourceUsers, ActionDelete, "Delete user accounts"},
		{ResourceSettings, ActionRead, "View application settings"},
		{ResourceSettings, ActionWrite, "Modify application settings"},
		{ResourceRBAC, ActionRead, "View roles and permissions"},
		{ResourceRBAC, ActionWrite, "Manage roles and permissions"},
		{ResourceProfile, ActionRead, "View own profile"},
		{ResourceProfile, ActionWrite, "Modify own profile"},
	}
}
