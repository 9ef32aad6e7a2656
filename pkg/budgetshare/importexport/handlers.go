package importexport

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/entries"
	"github.com/mikepea/budgetshare/pkg/budgetshare/groups"
	"github.com/mikepea/budgetshare/pkg/budgetshare/logging"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves ledger downloads and uploads
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates a new import/export handler
func NewHandler(exporter *Exporter, importer *Importer) *Handler {
	return &Handler{exporter: exporter, importer: importer}
}

// ImportRequest is a batch of ledger entries
type ImportRequest struct {
	Entries []entries.Input `json:"entries" binding:"required"`
}

// Export downloads a group's ledger
// @Summary Export ledger
// @Tags import-export
// @Produce json,text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Group ID"
// @Param format query string false "json (default), csv or xlsx"
// @Success 200
// @Security BearerAuth
// @Router /groups/{id}/export [get]
func (h *Handler) Export(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" && format != "xlsx" {
		apierr.Respond(c, apierr.Invalid("format", "Format must be one of json, csv, xlsx."))
		return
	}

	rows, err := h.exporter.Rows(c.Request.Context(), userID, groupID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	logging.FromContext(c).AddData("export_rows", len(rows))

	if format == "json" {
		c.JSON(http.StatusOK, gin.H{"entries": rows})
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	write := WriteCSV
	if format == "xlsx" {
		contentType = xlsxContentType
		write = WriteXLSX
	}
	if err := write(&buf, rows); err != nil {
		apierr.Respond(c, fmt.Errorf("write %s export: %w", format, err))
		return
	}

	filename := fmt.Sprintf("ledger_%d_%s.%s", groupID, time.Now().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Import uploads a batch of entries
// @Summary Import ledger entries
// @Tags import-export
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body ImportRequest true "Entries"
// @Success 200 {object} Result
// @Failure 403 {object} map[string]string "Edit access required"
// @Security BearerAuth
// @Router /groups/{id}/import [post]
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := groups.ParseGroupID(c)
	if !ok {
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}

	res, err := h.importer.Import(c.Request.Context(), userID, groupID, req.Entries)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	logging.FromContext(c).AddData("import_rows", res.Imported)

	c.JSON(http.StatusOK, res)
}

// RegisterGroupRoutes registers import/export routes under /groups
func (h *Handler) RegisterGroupRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/export", h.Export)
	rg.POST("/:id/import", h.Import)
}
