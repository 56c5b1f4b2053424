package models

import "time"

// UserPermission represents a per-user permission override.
// Overrides take precedence over role grants during permission resolution:
// Granted true force-allows the permission, false force-denies it.
type UserPermission struct {
	// UserID is the ID of the user this override applies to.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// PermissionID is the ID of the overridden permission.
	PermissionID uint `gorm:"primaryKey;column:permission_id"`
	// Granted is true to force-allow, false to force-deny.
	Granted bool `gorm:"not null;default:true"`
	// Permission is the associated permission (loaded via foreign key).
	Permission Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the override was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserPermission model.
func (UserPermission) TableName() string {
	return "user_permissions"
}
