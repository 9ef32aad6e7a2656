package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/access"
	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

// MaxNameLength is the longest accepted group name, in characters.
const MaxNameLength = 64

// Service implements group and membership management.
type Service struct {
	db     *gorm.DB
	policy *access.Policy
}

func NewService(db *gorm.DB, policy *access.Policy) *Service {
	return &Service{db: db, policy: policy}
}

// Summary is a group as seen by one of its members.
type Summary struct {
	Group       models.Group
	Role        models.Role
	MemberCount int64
}

// Member is a user holding a membership in a group.
type Member struct {
	UserID   uint
	Email    string
	Name     string
	Role     models.Role
	JoinedAt time.Time
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apierr.Invalid("name", "This field may not be blank.")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apierr.Invalid("name", fmt.Sprintf("Ensure this field has no more than %d characters.", MaxNameLength))
	}
	return name, nil
}

// Create stores a new group and the creator's admin membership in one
// transaction.
func (s *Service) Create(ctx context.Context, userID uint, name string) (*Summary, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	group := models.Group{Name: name, CreatorID: userID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		return tx.Create(&models.Membership{
			UserID:  userID,
			GroupID: group.ID,
			Role:    models.RoleAdmin,
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apierr.Conflict("You already have a group with this name")
	}
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	return &Summary{Group: group, Role: models.RoleAdmin, MemberCount: 1}, nil
}

// List returns every group the user belongs to, oldest first.
func (s *Service) List(ctx context.Context, userID uint) ([]Summary, error) {
	db := s.db.WithContext(ctx)

	var memberships []models.Membership
	if err := db.Preload("Group").Where("user_id = ?", userID).Order("group_id").Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []Summary{}, nil
	}

	groupIDs := make([]uint, len(memberships))
	for i, m := range memberships {
		groupIDs[i] = m.GroupID
	}

	var counts []struct {
		GroupID uint
		Count   int64
	}
	err := db.Model(&models.Membership{}).
		Select("group_id, COUNT(*) AS count").
		Where("group_id IN ?", groupIDs).
		Group("group_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	byGroup := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byGroup[c.GroupID] = c.Count
	}

	out := make([]Summary, len(memberships))
	for i, m := range memberships {
		out[i] = Summary{Group: m.Group, Role: m.Role, MemberCount: byGroup[m.GroupID]}
	}
	return out, nil
}

// Get returns one group for a member.
func (s *Service) Get(ctx context.Context, userID, groupID uint) (*Summary, error) {
	group, err := s.policy.Resolve(ctx, userID, groupID, access.ReadGroup)
	if err != nil {
		return nil, err
	}
	return s.summary(ctx, userID, group)
}

func (s *Service) summary(ctx context.Context, userID uint, group *models.Group) (*Summary, error) {
	db := s.db.WithContext(ctx)

	var m models.Membership
	if err := db.Where("user_id = ? AND group_id = ?", userID, group.ID).Take(&m).Error; err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	var count int64
	if err := db.Model(&models.Membership{}).Where("group_id = ?", group.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	return &Summary{Group: *group, Role: m.Role, MemberCount: count}, nil
}

// Rename changes the group's name. The new name must differ from the
// current one and be unique among the creator's groups.
func (s *Service) Rename(ctx context.Context, userID, groupID uint, name string) (*Summary, error) {
	group, err := s.policy.Resolve(ctx, userID, groupID, access.UpdateGroup)
	if err != nil {
		return nil, err
	}
	name, err = normalizeName(name)
	if err != nil {
		return nil, err
	}
	if name == group.Name {
		return nil, apierr.Invalid("name", "New name must be different from the current name.")
	}

	err = s.db.WithContext(ctx).Model(group).Update("name", name).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apierr.Conflict("You already have a group with this name")
	}
	if err != nil {
		return nil, fmt.Errorf("rename group: %w", err)
	}
	group.Name = name

	return s.summary(ctx, userID, group)
}

// Delete removes the group with its ledger, invitation requests and
// memberships.
func (s *Service) Delete(ctx context.Context, userID, groupID uint) error {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.DeleteGroup); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.LedgerEntry{}, &models.InvitationRequest{}, &models.Membership{}} {
			if err := tx.Where("group_id = ?", groupID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Group{}, groupID).Error
	})
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// Members lists the group's members, admin first then by join time.
func (s *Service) Members(ctx context.Context, userID, groupID uint) ([]Member, error) {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.ReadGroup); err != nil {
		return nil, err
	}

	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("created_at, id").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	out := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		member := Member{
			UserID:   m.UserID,
			Email:    m.User.Email,
			Name:     m.User.Name,
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
		}
		if m.Role == models.RoleAdmin {
			out = append([]Member{member}, out...)
			continue
		}
		out = append(out, member)
	}
	return out, nil
}

// UpdateMemberRole moves another member between read_only and edit.
func (s *Service) UpdateMemberRole(ctx context.Context, actorID, groupID, memberID uint, role models.Role) (*Member, error) {
	if _, err := s.policy.Resolve(ctx, actorID, groupID, access.ManageMembers); err != nil {
		return nil, err
	}
	if actorID == memberID {
		return nil, apierr.Forbidden("You cannot change your own role")
	}
	if role != models.RoleReadOnly && role != models.RoleEdit {
		return nil, apierr.Invalid("role", `Must be one of: read_only, edit.`)
	}

	var m models.Membership
	err := s.db.WithContext(ctx).Preload("User").Where("user_id = ? AND group_id = ?", memberID, groupID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("Member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}

	if !access.CanTransition(m.Role, role) {
		return nil, apierr.Invalid("role", fmt.Sprintf("Cannot change role from %s to %s.", m.Role, role))
	}
	if m.Role != role {
		if err := s.db.WithContext(ctx).Model(&m).Update("role", role).Error; err != nil {
			return nil, fmt.Errorf("update role: %w", err)
		}
	}

	return &Member{UserID: m.UserID, Email: m.User.Email, Name: m.User.Name, Role: role, JoinedAt: m.CreatedAt}, nil
}

// RemoveMember deletes another member's membership. Nobody can remove
// their own membership this way, which keeps the creator's admin row.
func (s *Service) RemoveMember(ctx context.Context, actorID, groupID, memberID uint) error {
	if _, err := s.policy.Resolve(ctx, actorID, groupID, access.ManageMembers); err != nil {
		return err
	}
	if actorID == memberID {
		return apierr.Forbidden("You cannot remove your own admin access")
	}

	result := s.db.WithContext(ctx).Where("user_id = ? AND group_id = ?", memberID, groupID).Delete(&models.Membership{})
	if result.Error != nil {
		return fmt.Errorf("remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierr.NotFound("Member not found")
	}
	return nil
}
