package refdata

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the read-only reference data endpoints
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a new reference data handler
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// ListCategories returns every category
// @Summary List categories
// @Tags reference-data
// @Produce json
// @Success 200 {array} models.Category
// @Security BearerAuth
// @Router /categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Categories())
}

// ListEntryTypes returns the entry types (income, expense)
// @Summary List entry types
// @Tags reference-data
// @Produce json
// @Success 200 {array} models.EntryType
// @Security BearerAuth
// @Router /entry-types [get]
func (h *Handler) ListEntryTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.EntryTypes())
}

// RegisterRoutes registers reference data routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.ListCategories)
	rg.GET("/entry-types", h.ListEntryTypes)
}
