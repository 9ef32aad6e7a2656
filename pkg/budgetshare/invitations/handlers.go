package invitations

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/groups"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

// Handler handles invitation request endpoints
type Handler struct {
	svc *Service
}

// NewHandler creates a new invitations handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SubmitRequest carries the invitation token shared by a group member
type SubmitRequest struct {
	InvitationToken string `json:"invitation_token" binding:"required"`
}

// DecideRequest carries the admin's decision
type DecideRequest struct {
	Status string `json:"status"`
}

// InvitationResponse represents an invitation request in API responses
type InvitationResponse struct {
	ID          uint      `json:"id"`
	GroupID     uint      `json:"group_id"`
	GroupName   string    `json:"group_name"`
	UserID      uint      `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	UserName    string    `json:"user_name"`
	Status      string    `json:"status"`
	DecidedByID *uint     `json:"decided_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func invitationResponse(r models.InvitationRequest) InvitationResponse {
	return InvitationResponse{
		ID:          r.ID,
		GroupID:     r.GroupID,
		GroupName:   r.Group.Name,
		UserID:      r.UserID,
		UserEmail:   r.User.Email,
		UserName:    r.User.Name,
		Status:      string(r.Status),
		DecidedByID: r.DecidedByID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func invitationResponses(reqs []models.InvitationRequest) []InvitationResponse {
	out := make([]InvitationResponse, len(reqs))
	for i, r := range reqs {
		out[i] = invitationResponse(r)
	}
	return out
}

// Submit asks to join the group that owns the given invitation token
// @Summary Request to join a group
// @Tags invitations
// @Accept json
// @Produce json
// @Param request body SubmitRequest true "Invitation token"
// @Success 201 {object} InvitationResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 404 {object} map[string]string "Unknown token"
// @Failure 409 {object} map[string]string "Already a member or already pending"
// @Security BearerAuth
// @Router /invitations [post]
func (h *Handler) Submit(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	inv, err := h.svc.Submit(c.Request.Context(), userID, req.InvitationToken)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, invitationResponse(*inv))
}

// ListMine returns the caller's own requests
// @Summary List my invitation requests
// @Tags invitations
// @Produce json
// @Success 200 {array} InvitationResponse
// @Security BearerAuth
// @Router /invitations [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	reqs, err := h.svc.ListMine(c.Request.Context(), userID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, invitationResponses(reqs))
}

// ListForGroup returns the group's requests (group admin only)
// @Summary List a group's invitation requests
// @Tags invitations
// @Produce json
// @Param id path int true "Group ID"
// @Param status query string false "pending, accepted or denied"
// @Success 200 {array} InvitationResponse
// @Failure 403 {object} map[string]string "Group admin access required"
// @Security BearerAuth
// @Router /groups/{id}/invitations [get]
func (h *Handler) ListForGroup(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}

	reqs, err := h.svc.ListForGroup(c.Request.Context(), userID, groupID, models.InvitationStatus(c.Query("status")))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, invitationResponses(reqs))
}

// Decide accepts or denies a pending request (group admin only)
// @Summary Decide an invitation request
// @Tags invitations
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param requestId path int true "Invitation request ID"
// @Param request body DecideRequest true "Decision"
// @Success 200 {object} InvitationResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 403 {object} map[string]string "Group admin access required"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 409 {object} map[string]string "Already decided"
// @Security BearerAuth
// @Router /groups/{id}/invitations/{requestId} [put]
func (h *Handler) Decide(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}
	requestID, err := strconv.ParseUint(c.Param("requestId"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.Invalid("requestId", "Invalid invitation request ID"))
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	inv, err := h.svc.Decide(c.Request.Context(), userID, groupID, uint(requestID), models.InvitationStatus(req.Status))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, invitationResponse(*inv))
}

// RegisterRoutes registers the caller-facing routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/invitations", h.Submit)
	rg.GET("/invitations", h.ListMine)
}

// RegisterGroupRoutes registers the admin routes under /groups
func (h *Handler) RegisterGroupRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/invitations", h.ListForGroup)
	rg.PUT("/:id/invitations/:requestId", h.Decide)
}
