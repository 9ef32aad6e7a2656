package entries

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/groups"
	"github.com/mikepea/budgetshare/pkg/budgetshare/logging"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

// Handler handles ledger entry requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new entries handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID         uint      `json:"id"`
	GroupID    uint      `json:"group_id"`
	TypeID     uint      `json:"type_id"`
	Date       string    `json:"date"`
	Title      string    `json:"title"`
	CategoryID *uint     `json:"category_id"`
	Value      string    `json:"value"`
	ByID       *uint     `json:"by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewEntryResponse renders an entry with its date as YYYY-MM-DD and its
// value with two decimal places.
func NewEntryResponse(e models.LedgerEntry) EntryResponse {
	return EntryResponse{
		ID:         e.ID,
		GroupID:    e.GroupID,
		TypeID:     e.TypeID,
		Date:       e.Date.Format(DateLayout),
		Title:      e.Title,
		CategoryID: e.CategoryID,
		Value:      e.Value.StringFixed(2),
		ByID:       e.ByID,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// ListResponse is a page of entries
type ListResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// CategoryTotalResponse is one row of a summary's breakdown
type CategoryTotalResponse struct {
	CategoryID *uint  `json:"category_id"`
	Name       string `json:"name"`
	Income     string `json:"income"`
	Expense    string `json:"expense"`
}

// SummaryResponse represents ledger totals
type SummaryResponse struct {
	Count      int                     `json:"count"`
	Income     string                  `json:"income"`
	Expense    string                  `json:"expense"`
	Balance    string                  `json:"balance"`
	ByCategory []CategoryTotalResponse `json:"by_category"`
}

func parseEntryID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("entryId"), 10, 32)
	if err != nil || id == 0 {
		apierr.Respond(c, apierr.Invalid("entryId", "Invalid entry ID"))
		return 0, false
	}
	logging.FromContext(c).AddData("entry_id", id)
	return uint(id), true
}

// parseFilter reads type_id, category_id, from, to, limit and offset query
// parameters. All problems are reported together.
func (h *Handler) parseFilter(c *gin.Context) (Filter, error) {
	var f Filter
	fields := map[string]string{}

	parseUint := func(name string) uint {
		raw := c.Query(name)
		if raw == "" {
			return 0
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			fields[name] = "A valid integer is required."
			return 0
		}
		return uint(n)
	}
	parseDate := func(name string) *time.Time {
		raw := c.Query(name)
		if raw == "" {
			return nil
		}
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			fields[name] = "Date has wrong format. Use YYYY-MM-DD."
			return nil
		}
		return &d
	}

	f.TypeID = parseUint("type_id")
	f.CategoryID = parseUint("category_id")
	f.From = parseDate("from")
	f.To = parseDate("to")
	f.Limit = int(parseUint("limit"))
	f.Offset = int(parseUint("offset"))

	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		fields["from"] = "Start date must not be after end date."
	}
	if len(fields) > 0 {
		return Filter{}, apierr.Validation(fields)
	}
	return f, nil
}

// Create adds an entry to a group's ledger
// @Summary Create a ledger entry
// @Tags entries
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body Input true "Entry"
// @Success 201 {object} EntryResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 403 {object} map[string]string "Edit access required"
// @Security BearerAuth
// @Router /groups/{id}/entries [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}

	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	entry, err := h.svc.Create(c.Request.Context(), userID, groupID, in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewEntryResponse(*entry))
}

// List returns a group's entries
// @Summary List ledger entries
// @Tags entries
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} ListResponse
// @Security BearerAuth
// @Router /groups/{id}/entries [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}

	f, err := h.parseFilter(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	list, total, err := h.svc.List(c.Request.Context(), userID, groupID, f)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	out := make([]EntryResponse, len(list))
	for i, e := range list {
		out[i] = NewEntryResponse(e)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	c.JSON(http.StatusOK, ListResponse{Entries: out, Total: total, Limit: limit, Offset: f.Offset})
}

// Get returns one entry
// @Summary Get a ledger entry
// @Tags entries
// @Produce json
// @Param id path int true "Group ID"
// @Param entryId path int true "Entry ID"
// @Success 200 {object} EntryResponse
// @Security BearerAuth
// @Router /groups/{id}/entries/{entryId} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}
	entryID, ok := parseEntryID(c)
	if !ok {
		return
	}

	entry, err := h.svc.Get(c.Request.Context(), userID, groupID, entryID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, NewEntryResponse(*entry))
}

// Update changes the supplied fields of an entry
// @Summary Update a ledger entry
// @Tags entries
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param entryId path int true "Entry ID"
// @Param request body Input true "Fields to change"
// @Success 200 {object} EntryResponse
// @Security BearerAuth
// @Router /groups/{id}/entries/{entryId} [patch]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}
	entryID, ok := parseEntryID(c)
	if !ok {
		return
	}

	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	entry, err := h.svc.Update(c.Request.Context(), userID, groupID, entryID, in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, NewEntryResponse(*entry))
}

// Delete removes an entry
// @Summary Delete a ledger entry
// @Tags entries
// @Param id path int true "Group ID"
// @Param entryId path int true "Entry ID"
// @Success 204
// @Security BearerAuth
// @Router /groups/{id}/entries/{entryId} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}
	entryID, ok := parseEntryID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, groupID, entryID); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Summary returns income and expense totals
// @Summary Ledger summary
// @Tags entries
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} SummaryResponse
// @Security BearerAuth
// @Router /groups/{id}/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}

	f, err := h.parseFilter(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	sum, err := h.svc.Summary(c.Request.Context(), userID, groupID, f)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	resp := SummaryResponse{
		Count:      sum.Count,
		Income:     sum.Income.StringFixed(2),
		Expense:    sum.Expense.StringFixed(2),
		Balance:    sum.Balance.StringFixed(2),
		ByCategory: make([]CategoryTotalResponse, len(sum.ByCategory)),
	}
	for i, ct := range sum.ByCategory {
		resp.ByCategory[i] = CategoryTotalResponse{
			CategoryID: ct.CategoryID,
			Name:       ct.Name,
			Income:     ct.Income.StringFixed(2),
			Expense:    ct.Expense.StringFixed(2),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterGroupRoutes registers ledger routes under /groups
func (h *Handler) RegisterGroupRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/entries", h.Create)
	rg.GET("/:id/entries", h.List)
	rg.GET("/:id/entries/:entryId", h.Get)
	rg.PATCH("/:id/entries/:entryId", h.Update)
	rg.DELETE("/:id/entries/:entryId", h.Delete)
	rg.GET("/:id/summary", h.Summary)
}
