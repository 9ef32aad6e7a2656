// Package invitations implements the request-to-join workflow. A request
// starts pending and is decided exactly once by the group admin; accepting
// it creates a read_only membership in the same transaction.
package invitations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/access"
	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/metrics"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
	"github.com/mikepea/budgetshare/pkg/budgetshare/notify"
)

var (
	errAlreadyMember  = apierr.Conflict("You are already a member of this group")
	errAlreadyPending = apierr.Conflict("You already have a pending request for this group")
	errAlreadyDecided = apierr.Conflict("This request has already been decided")
)

// Service implements submission and decision of invitation requests.
type Service struct {
	db     *gorm.DB
	policy *access.Policy
	notify *notify.Dispatcher
}

// NewService creates the workflow service. dispatcher may be nil.
func NewService(db *gorm.DB, policy *access.Policy, dispatcher *notify.Dispatcher) *Service {
	return &Service{db: db, policy: policy, notify: dispatcher}
}

// Submit creates a pending request for the group owning token.
func (s *Service) Submit(ctx context.Context, userID uint, token string) (*models.InvitationRequest, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, apierr.Invalid("invitation_token", "Must be a valid UUID.")
	}
	db := s.db.WithContext(ctx)

	var group models.Group
	err := db.Preload("Creator").Where("invitation_token = ?", token).Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("No group matches this invitation token")
	}
	if err != nil {
		return nil, fmt.Errorf("load group by token: %w", err)
	}

	member, err := s.policy.IsMember(ctx, userID, group.ID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, errAlreadyMember
	}

	var pending int64
	err = db.Model(&models.InvitationRequest{}).
		Where("user_id = ? AND group_id = ? AND status = ?", userID, group.ID, models.InvitationPending).
		Count(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("count pending requests: %w", err)
	}
	if pending > 0 {
		return nil, errAlreadyPending
	}

	req := models.InvitationRequest{
		UserID:  userID,
		GroupID: group.ID,
		Status:  models.InvitationPending,
	}
	// a concurrent submission loses on idx_invitation_pending
	if err := db.Create(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errAlreadyPending
		}
		return nil, fmt.Errorf("create invitation request: %w", err)
	}
	metrics.InvitationsSubmitted.Inc()

	if err := db.Preload("User").Take(&req, req.ID).Error; err != nil {
		return nil, fmt.Errorf("reload invitation request: %w", err)
	}
	req.Group = group

	s.notify.Dispatch(group.Creator.Email, "New request to join "+group.Name,
		fmt.Sprintf("%s (%s) asked to join %s.", req.User.Name, req.User.Email, group.Name))

	return &req, nil
}

// Decide moves a pending request to accepted or denied. Accepting also
// creates the requester's read_only membership; if that insert fails the
// status change is rolled back with it.
func (s *Service) Decide(ctx context.Context, actorID, groupID, requestID uint, status models.InvitationStatus) (*models.InvitationRequest, error) {
	group, err := s.policy.Resolve(ctx, actorID, groupID, access.DecideInvitations)
	if err != nil {
		return nil, err
	}
	if status != models.InvitationAccepted && status != models.InvitationDenied {
		return nil, apierr.Invalid("status", "Must be one of: accepted, denied.")
	}

	var req models.InvitationRequest
	err = s.db.WithContext(ctx).Preload("User").Where("id = ? AND group_id = ?", requestID, groupID).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("Invitation request not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load invitation request: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// authorization and the status change commit together
		if err := s.policy.WithTx(tx).Authorize(ctx, actorID, groupID, access.DecideInvitations); err != nil {
			return err
		}
		result := tx.Model(&models.InvitationRequest{}).
			Where("id = ? AND status = ?", req.ID, models.InvitationPending).
			Updates(map[string]interface{}{
				"status":        status,
				"decided_by_id": actorID,
			})
		if result.Error != nil {
			return fmt.Errorf("update invitation status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errAlreadyDecided
		}

		if status != models.InvitationAccepted {
			return nil
		}
		err := tx.Create(&models.Membership{
			UserID:  req.UserID,
			GroupID: groupID,
			Role:    models.RoleReadOnly,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apierr.Conflict("User is already a member of this group")
		}
		if err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.InvitationDecisions.WithLabelValues(string(status)).Inc()

	req.Status = status
	req.DecidedByID = &actorID
	req.Group = *group

	s.notify.Dispatch(req.User.Email, fmt.Sprintf("Your request to join %s was %s", group.Name, status),
		fmt.Sprintf("Hi %s, the admin of %s has %s your request.", req.User.Name, group.Name, status))

	return &req, nil
}

// ListForGroup returns the group's requests, newest first. An empty status
// returns all of them.
func (s *Service) ListForGroup(ctx context.Context, actorID, groupID uint, status models.InvitationStatus) ([]models.InvitationRequest, error) {
	group, err := s.policy.Resolve(ctx, actorID, groupID, access.ListInvitations)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Preload("User").Where("group_id = ?", groupID)
	if status != "" {
		if status != models.InvitationPending && !status.Terminal() {
			return nil, apierr.Invalid("status", "Must be one of: pending, accepted, denied.")
		}
		q = q.Where("status = ?", status)
	}

	var reqs []models.InvitationRequest
	if err := q.Order("created_at DESC, id DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list invitation requests: %w", err)
	}
	for i := range reqs {
		reqs[i].Group = *group
	}
	return reqs, nil
}

// ListMine returns the caller's own requests across all groups.
func (s *Service) ListMine(ctx context.Context, userID uint) ([]models.InvitationRequest, error) {
	var reqs []models.InvitationRequest
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Group").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list invitation requests: %w", err)
	}
	return reqs, nil
}
