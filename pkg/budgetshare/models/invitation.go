package models

import (
	"time"
)

// InvitationStatus is the lifecycle state of an InvitationRequest.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDenied   InvitationStatus = "denied"
)

// Terminal reports whether no further transition is possible.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationDenied
}

// InvitationRequest is a user's request to join a group. The partial unique
// index allows any number of decided requests per (user, group) but only one
// pending request at a time.
type InvitationRequest struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	UserID      uint             `gorm:"not null;uniqueIndex:idx_invitation_pending,where:status = 'pending'" json:"user_id"`
	GroupID     uint             `gorm:"not null;index;uniqueIndex:idx_invitation_pending,where:status = 'pending'" json:"group_id"`
	Status      InvitationStatus `gorm:"type:varchar(8);not null;default:'pending'" json:"status"`
	DecidedByID *uint            `json:"decided_by_id,omitempty"`

	// Relationships
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Group Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}
