package models

import "time"

// Permission represents a specific permission in the authorization system.
// Permissions define granular access rights as a resource plus an action.
// They are assigned to roles, or directly to users as overrides.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID uint `gorm:"primaryKey" json:"id"`
	// Resource is the resource this permission applies to (e.g., "users", "settings", "rbac").
	Resource string `gorm:"size:100;not null;uniqueIndex:idx_resource_action" json:"resource"`
	// Action is the action allowed on the resource (e.g., "read", "write", "delete").
	Action string `gorm:"size:50;not null;uniqueIndex:idx_resource_action" json:"action"`
	// Description provides a human-readable explanation of what this permission grants.
	Description string `gorm:"size:255" json:"description"`
	// CreatedAt is the timestamp when the permission was created (managed by GORM).
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the timestamp when the permission was last updated (managed by GORM).
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the database table name for the Permission model.
func (Permission) TableName() string {
	return "permissions"
}
