package models

import "time"

// UserRole represents the many-to-many relationship between users and roles.
// Users can hold multiple roles; their permissions are the union of all
// role grants, unless a per-user override says otherwise.
type UserRole struct {
	// UserID is the ID of the user in this assignment.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// RoleID is the ID of the role in this assignment.
	RoleID uint `gorm:"primaryKey;column:role_id"`
	// Role is the associated role (loaded via foreign key).
	Role Role `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the role was assigned (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserRole model.
func (UserRole) TableName() string {
	return "user_roles"
}
