package models

import (
	"time"
)

// Role represents a user's role within a group
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEdit     Role = "edit"
	RoleReadOnly Role = "read_only"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEdit, RoleReadOnly:
		return true
	}
	return false
}

// Membership grants a user a role in a group. There is at most one row per
// (user, group), enforced by idx_membership_user_group. Rows are hard-deleted
// so a removed member can be admitted again later.
type Membership struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_membership_user_group" json:"user_id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_membership_user_group;index" json:"group_id"`
	Role      Role      `gorm:"type:varchar(10);not null;default:'read_only'" json:"role"`

	// Relationships
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Group Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}
