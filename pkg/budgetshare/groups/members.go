package groups

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

// MemberResponse represents a group member in API responses
type MemberResponse struct {
	ID       uint      `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// UpdateMemberRequest represents a request to update a member's role
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required,oneof=read_only edit"`
}

func memberResponse(m Member) MemberResponse {
	return MemberResponse{
		ID:       m.UserID,
		Email:    m.Email,
		Name:     m.Name,
		Role:     string(m.Role),
		JoinedAt: m.JoinedAt,
	}
}

// ListMembers returns all members of a group
// @Summary List group members
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {array} MemberResponse
// @Failure 403 {object} map[string]string "Not a member"
// @Security BearerAuth
// @Router /groups/{id}/members [get]
func (h *Handler) ListMembers(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := ParseGroupID(c)
	if !ok {
		return
	}

	members, err := h.svc.Members(c.Request.Context(), userID, groupID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = memberResponse(m)
	}
	c.JSON(http.StatusOK, out)
}

// UpdateMember updates a member's role (group admin only)
// @Summary Change a member's role
// @Description Switch another member between read_only and edit
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param userId path int true "User ID"
// @Param request body UpdateMemberRequest true "New role"
// @Success 200 {object} MemberResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 403 {object} map[string]string "Group admin access required"
// @Failure 404 {object} map[string]string "Member not found"
// @Security BearerAuth
// @Router /groups/{id}/members/{userId} [put]
func (h *Handler) UpdateMember(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)
	groupID, ok := ParseGroupID(c)
	if !ok {
		return
	}
	memberID, ok := parseUintParam(c, "userId", "Invalid user ID")
	if !ok {
		return
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	m, err := h.svc.UpdateMemberRole(c.Request.Context(), actorID, groupID, memberID, models.Role(req.Role))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, memberResponse(*m))
}

// RemoveMember removes another member from a group (group admin only)
// @Summary Remove a member
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Param userId path int true "User ID"
// @Success 200 {object} map[string]string "Member removed"
// @Failure 403 {object} map[string]string "Group admin access required"
// @Failure 404 {object} map[string]string "Member not found"
// @Security BearerAuth
// @Router /groups/{id}/members/{userId} [delete]
func (h *Handler) RemoveMember(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)
	groupID, ok := ParseGroupID(c)
	if !ok {
		return
	}
	memberID, ok := parseUintParam(c, "userId", "Invalid user ID")
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), actorID, groupID, memberID); err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// RegisterMemberRoutes registers member management routes
func (h *Handler) RegisterMemberRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/members", h.ListMembers)
	rg.PUT("/:id/members/:userId", h.UpdateMember)
	rg.DELETE("/:id/members/:userId", h.RemoveMember)
}
