// Package admin is the system administrator surface: account management,
// usage statistics and the category reference data.
package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
)

// Handler handles system admin requests
type Handler struct {
	db      *gorm.DB
	catalog *refdata.Catalog
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, catalog *refdata.Catalog) *Handler {
	return &Handler{db: db, catalog: catalog}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	SystemRole   string `json:"system_role"`
	CreatedAt    string `json:"created_at"`
	GroupCount   int64  `json:"group_count"`
	CreatedCount int64  `json:"created_group_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name       *string `json:"name"`
	SystemRole *string `json:"system_role" binding:"omitempty,oneof=admin user"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers         int64  `json:"total_users"`
	AdminUsers         int64  `json:"admin_users"`
	TotalGroups        int64  `json:"total_groups"`
	TotalMemberships   int64  `json:"total_memberships"`
	PendingInvitations int64  `json:"pending_invitations"`
	TotalEntries       int64  `json:"total_entries"`
	TotalEntryValue    string `json:"total_entry_value"`
	ActiveAPIKeys      int64  `json:"active_api_keys"`
	TotalCategories    int    `json:"total_categories"`
}

func parseID(c *gin.Context, msg string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		apierr.Respond(c, apierr.Invalid("id", msg))
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) userResponse(user models.User) UserResponse {
	var groupCount, createdCount int64
	h.db.Model(&models.Membership{}).Where("user_id = ?", user.ID).Count(&groupCount)
	h.db.Model(&models.Group{}).Where("creator_id = ?", user.ID).Count(&createdCount)

	return UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		SystemRole:   string(user.SystemRole),
		CreatedAt:    user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		GroupCount:   groupCount,
		CreatedCount: createdCount,
	}
}

func (h *Handler) loadUser(c *gin.Context, id uint) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(c.Request.Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.WithContext(c.Request.Context()).Order("created_at DESC")
	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR name LIKE ?", like, like)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		apierr.Respond(c, fmt.Errorf("list users: %w", err))
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.userResponse(user)
	}
	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "Invalid user ID")
	if !ok {
		return
	}

	user, err := h.loadUser(c, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, h.userResponse(*user))
}

// UpdateUser changes a user's name or system role
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "Invalid user ID")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID && req.SystemRole != nil && *req.SystemRole != string(models.SystemRoleAdmin) {
		apierr.Respond(c, apierr.Invalid("system_role", "Cannot demote yourself"))
		return
	}

	user, err := h.loadUser(c, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			apierr.Respond(c, apierr.Invalid("name", "This field may not be blank."))
			return
		}
		updates["name"] = name
	}
	if req.SystemRole != nil {
		updates["system_role"] = *req.SystemRole
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(user).Updates(updates).Error; err != nil {
			apierr.Respond(c, fmt.Errorf("update user: %w", err))
			return
		}
	}

	user, err = h.loadUser(c, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, h.userResponse(*user))
}

// DeleteUser soft-deletes a user. Users who still administer groups must
// delete them first.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "Invalid user ID")
	if !ok {
		return
	}

	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID {
		apierr.Respond(c, apierr.Invalid("id", "Cannot delete yourself"))
		return
	}

	user, err := h.loadUser(c, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var created int64
		if err := tx.Model(&models.Group{}).Where("creator_id = ?", user.ID).Count(&created).Error; err != nil {
			return err
		}
		if created > 0 {
			return apierr.Conflict("User still administers groups")
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.InvitationRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.LedgerEntry{}).Where("by_id = ?", user.ID).Update("by_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		if !apierr.Is(err, apierr.KindConflict) {
			err = fmt.Errorf("delete user: %w", err)
		}
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns system-wide statistics
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	db := h.db.WithContext(c.Request.Context())

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"users", db.Model(&models.User{}), &stats.TotalUsers},
		{"admins", db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin), &stats.AdminUsers},
		{"groups", db.Model(&models.Group{}), &stats.TotalGroups},
		{"memberships", db.Model(&models.Membership{}), &stats.TotalMemberships},
		{"pending invitations", db.Model(&models.InvitationRequest{}).Where("status = ?", models.InvitationPending), &stats.PendingInvitations},
		{"entries", db.Model(&models.LedgerEntry{}), &stats.TotalEntries},
		{"api keys", db.Model(&models.APIKey{}), &stats.ActiveAPIKeys},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dest).Error; err != nil {
			apierr.Respond(c, fmt.Errorf("count %s: %w", q.name, err))
			return
		}
	}
	stats.TotalCategories = len(h.catalog.Categories())

	var values []models.LedgerEntry
	if err := db.Select("value").Find(&values).Error; err != nil {
		apierr.Respond(c, fmt.Errorf("sum entries: %w", err))
		return
	}
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.Value)
	}
	stats.TotalEntryValue = total.StringFixed(2)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)

	rg.POST("/categories", h.CreateCategory)
	rg.PUT("/categories/:id", h.RenameCategory)
	rg.DELETE("/categories/:id", h.DeleteCategory)
}
