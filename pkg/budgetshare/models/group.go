package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is a household budget. The creator is its admin for the group's
// whole lifetime; other users join through an InvitationRequest carrying
// InvitationToken.
type Group struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// written once on create, never updated
	InvitationToken string `gorm:"<-:create;size:36;uniqueIndex;not null" json:"invitation_token"`
	Name            string `gorm:"size:64;not null;uniqueIndex:idx_group_creator_name" json:"name"`
	CreatorID       uint   `gorm:"not null;uniqueIndex:idx_group_creator_name" json:"creator_id"`

	// Relationships
	Creator User         `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Members []Membership `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// BeforeCreate assigns a random invitation token.
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.InvitationToken == "" {
		g.InvitationToken = uuid.NewString()
	}
	return nil
}
