package groups

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/logging"
)

// Handler handles group-related requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new groups handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateGroupRequest represents the request to create a group
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateGroupRequest represents the request to rename a group
type UpdateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	InvitationToken string    `json:"invitation_token"`
	CreatorID       uint      `json:"creator_id"`
	Role            string    `json:"role"` // caller's role in this group
	MemberCount     int64     `json:"member_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func groupResponse(s Summary) GroupResponse {
	return GroupResponse{
		ID:              s.Group.ID,
		Name:            s.Group.Name,
		InvitationToken: s.Group.InvitationToken,
		CreatorID:       s.Group.CreatorID,
		Role:            string(s.Role),
		MemberCount:     s.MemberCount,
		CreatedAt:       s.Group.CreatedAt,
	}
}

// ParseGroupID reads the :id path parameter. On failure it writes a 400 and
// returns false.
func ParseGroupID(c *gin.Context) (uint, bool) {
	return parseUintParam(c, "id", "Invalid group ID")
}

func parseUintParam(c *gin.Context, name, msg string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		apierr.Respond(c, apierr.Invalid(name, msg))
		return 0, false
	}
	if name == "id" {
		logging.FromContext(c).AddData("group_id", id)
	}
	return uint(id), true
}

// List returns all groups the current user is a member of
// @Summary List groups
// @Description Get all groups the current user is a member of
// @Tags groups
// @Produce json
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /groups [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	summaries, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	groups := make([]GroupResponse, len(summaries))
	for i, s := range summaries {
		groups[i] = groupResponse(s)
	}
	c.JSON(http.StatusOK, groups)
}

// Create creates a new group and adds the creator as admin
// @Summary Create a group
// @Description Create a new group with the current user as admin
// @Tags groups
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "Group details"
// @Success 201 {object} GroupResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 409 {object} map[string]string "Duplicate group name"
// @Security BearerAuth
// @Router /groups [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	s, err := h.svc.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, groupResponse(*s))
}

// Get returns a specific group
// @Summary Get a group
// @Description Get details of a specific group
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 403 {object} map[string]string "Not a member"
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := ParseGroupID(c)
	if !ok {
		return
	}

	s, err := h.svc.Get(c.Request.Context(), userID, groupID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, groupResponse(*s))
}

// Update renames a group (group admin only)
// @Summary Rename a group
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body UpdateGroupRequest true "New name"
// @Success 200 {object} GroupResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 403 {object} map[string]string "Group admin access required"
// @Failure 409 {object} map[string]string "Duplicate group name"
// @Security BearerAuth
// @Router /groups/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := ParseGroupID(c)
	if !ok {
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	s, err := h.svc.Rename(c.Request.Context(), userID, groupID, req.Name)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, groupResponse(*s))
}

// Delete deletes a group (group admin only)
// @Summary Delete a group
// @Description Delete a group with its ledger, members and invitation requests
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} map[string]string "Group deleted"
// @Failure 403 {object} map[string]string "Group admin access required"
// @Security BearerAuth
// @Router /groups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := ParseGroupID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, groupID); err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// RegisterRoutes registers group routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
