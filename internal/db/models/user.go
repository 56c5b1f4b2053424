package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AuthSource represents the authentication source for a user account.
// It indicates how the user authenticates (local database, LDAP, or OIDC).
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceOIDC indicates the user authenticates via OpenID Connect (OIDC).
	AuthSourceOIDC AuthSource = "oidc"
	// AuthSourceLDAP indicates the user authenticates via LDAP or Active Directory.
	AuthSourceLDAP AuthSource = "ldap"
)

// Legacy permission bit flags kept on the user record. The relational RBAC
// tables are the primary authorization source; these flags summarize a user's
// preset for clients that only need a coarse role.
const (
	// PermissionRead allows read access.
	PermissionRead = 1
	// PermissionWrite allows write access.
	PermissionWrite = 2
	// PermissionAdmin allows administrative access.
	PermissionAdmin = 4
	// PermissionDelete allows delete access.
	PermissionDelete = 8
	// PermissionUserManage allows managing user accounts.
	PermissionUserManage = 16
)

// Permission presets matching the built-in roles.
const (
	// PermissionsViewer is the read-only preset.
	PermissionsViewer = PermissionRead
	// PermissionsUser is the standard read/write preset.
	PermissionsUser = PermissionRead | PermissionWrite
	// PermissionsAdmin is the full-access preset.
	PermissionsAdmin = PermissionRead | PermissionWrite | PermissionAdmin |
		PermissionDelete | PermissionUserManage
)

// User represents a user account in the system.
// Users can authenticate via local database, LDAP, or OIDC and are assigned
// roles plus optional per-user permission overrides.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey" json:"id"`
	// Active indicates whether the user account is active and can log in.
	Active bool `json:"active"`
	// Username is the unique username for login.
	Username string `gorm:"unique;size:100;not null" json:"username"`
	// RealName is the user's display name.
	RealName string `gorm:"size:255" json:"real_name"`
	// Email is the user's email address.
	Email string `gorm:"size:255" json:"email"`
	// Password is the Argon2id hashed password (only used for local authentication).
	Password string `gorm:"size:255" json:"-"`
	// Permissions holds the legacy permission bit flags.
	Permissions int `gorm:"not null;default:1" json:"permissions"`
	// Debug enables verbose client-side diagnostics for this user.
	Debug bool `gorm:"default:false" json:"debug"`
	// APIKey is an optional personal API key.
	APIKey string `gorm:"column:api_key;size:64" json:"-"`
	// AuthSource indicates how this user authenticates (local, oidc, or ldap).
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'" json:"auth_source"`
	// Provider is the identifier of the OIDC provider that owns this account.
	// Empty for local and LDAP users.
	Provider string `gorm:"size:100;index:idx_provider_external" json:"provider,omitempty"`
	// ExternalID is the external identifier for OIDC (sub claim) or LDAP (DN) users.
	ExternalID string `gorm:"size:255;index:idx_provider_external" json:"-"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time `json:"updated_at"`
	// DeletedAt is the soft delete timestamp (managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasFlag reports whether the user's legacy bit flags contain the given permission.
func (u *User) HasFlag(flag int) bool {
	return u.Permissions&flag != 0
}

// PresetName returns the built-in role name matching the user's bit flags,
// or "custom" when the flags match no preset.
func (u *User) PresetName() string {
	switch u.Permissions {
	case PermissionsAdmin:
		return "admin"
	case PermissionsUser:
		return "user"
	case PermissionsViewer:
		return "viewer"
	default:
		return "custom"
	}
}

// PresetFlags returns the permission bit flags for a built-in role name.
// Unknown names map to the standard user preset.
func PresetFlags(role string) int {
	switch role {
	case "admin":
		return PermissionsAdmin
	case "viewer":
		return PermissionsViewer
	default:
		return PermissionsUser
	}
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This function should be used when creating or updating local user passwords.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
