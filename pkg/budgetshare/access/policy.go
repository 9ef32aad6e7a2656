// Package access decides whether a user may perform an action on a group.
// It only reads Membership and Group rows and never writes.
package access

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

// Action is something a user does to a group or its ledger.
type Action string

const (
	ReadGroup         Action = "read_group"
	ReadLedger        Action = "read_ledger"
	WriteLedger       Action = "write_ledger"
	UpdateGroup       Action = "update_group"
	DeleteGroup       Action = "delete_group"
	ManageMembers     Action = "manage_members"
	ListInvitations   Action = "list_invitations"
	DecideInvitations Action = "decide_invitations"
)

type predicate func(p *Policy, ctx context.Context, userID, groupID uint) (bool, error)

var actions = map[Action]predicate{
	ReadGroup:         (*Policy).IsMember,
	ReadLedger:        (*Policy).IsMember,
	WriteLedger:       (*Policy).IsEditorOrAdmin,
	UpdateGroup:       (*Policy).IsGroupAdmin,
	DeleteGroup:       (*Policy).IsGroupAdmin,
	ManageMembers:     (*Policy).IsGroupAdmin,
	ListInvitations:   (*Policy).IsGroupAdmin,
	DecideInvitations: (*Policy).IsGroupAdmin,
}

var denied = map[Action]string{
	ReadGroup:         "You are not a member of this group",
	ReadLedger:        "You are not a member of this group",
	WriteLedger:       "Edit access required",
	UpdateGroup:       "Group admin access required",
	DeleteGroup:       "Group admin access required",
	ManageMembers:     "Group admin access required",
	ListInvitations:   "Group admin access required",
	DecideInvitations: "Group admin access required",
}

// Policy evaluates access predicates against the membership table.
type Policy struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Policy {
	return &Policy{db: db}
}

// WithTx returns a Policy that reads through tx.
func (p *Policy) WithTx(tx *gorm.DB) *Policy {
	return &Policy{db: tx}
}

// role returns the user's role in the group, or "" when there is no row.
func (p *Policy) role(ctx context.Context, userID, groupID uint) (models.Role, error) {
	var m models.Membership
	err := p.db.WithContext(ctx).
		Select("role").
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load membership: %w", err)
	}
	return m.Role, nil
}

// IsMember reports whether the user holds any membership in the group.
func (p *Policy) IsMember(ctx context.Context, userID, groupID uint) (bool, error) {
	r, err := p.role(ctx, userID, groupID)
	return r != "", err
}

// IsEditorOrAdmin reports whether the user's role is edit or admin.
func (p *Policy) IsEditorOrAdmin(ctx context.Context, userID, groupID uint) (bool, error) {
	r, err := p.role(ctx, userID, groupID)
	return r == models.RoleEdit || r == models.RoleAdmin, err
}

// IsGroupAdmin requires the user to be the group's creator and to hold an
// admin membership row. Neither alone is enough.
func (p *Policy) IsGroupAdmin(ctx context.Context, userID, groupID uint) (bool, error) {
	var group models.Group
	err := p.db.WithContext(ctx).Select("id", "creator_id").Take(&group, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load group: %w", err)
	}
	if group.CreatorID != userID {
		return false, nil
	}
	r, err := p.role(ctx, userID, groupID)
	return r == models.RoleAdmin, err
}

// Can evaluates the predicate mapped to action.
func (p *Policy) Can(ctx context.Context, userID, groupID uint, action Action) (bool, error) {
	pred, ok := actions[action]
	if !ok {
		return false, fmt.Errorf("unknown action %q", action)
	}
	return pred(p, ctx, userID, groupID)
}

// Authorize is Can with a false result turned into an authorization error.
func (p *Policy) Authorize(ctx context.Context, userID, groupID uint, action Action) error {
	ok, err := p.Can(ctx, userID, groupID, action)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.Forbidden(denied[action])
	}
	return nil
}

// Group loads the group or returns a not-found error.
func (p *Policy) Group(ctx context.Context, groupID uint) (*models.Group, error) {
	var group models.Group
	err := p.db.WithContext(ctx).Take(&group, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("Group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	return &group, nil
}

// Resolve loads the group and authorizes the action on it. A missing group
// is reported as not found before any access check.
func (p *Policy) Resolve(ctx context.Context, userID, groupID uint, action Action) (*models.Group, error) {
	group, err := p.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := p.Authorize(ctx, userID, groupID, action); err != nil {
		return nil, err
	}
	return group, nil
}
