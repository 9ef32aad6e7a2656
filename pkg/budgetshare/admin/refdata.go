package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

const maxCategoryName = 64

// CategoryRequest names a category
type CategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func categoryName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apierr.Invalid("name", "This field may not be blank.")
	}
	if utf8.RuneCountInString(name) > maxCategoryName {
		return "", apierr.Invalid("name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxCategoryName))
	}
	return name, nil
}

// reload swaps in a fresh reference-data snapshot after a committed write.
func (h *Handler) reload(c *gin.Context) {
	if err := h.catalog.Load(c.Request.Context()); err != nil {
		logrus.WithError(err).Error("Catalog.ReloadFailed")
	}
}

// CreateCategory adds a category
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}
	name, err := categoryName(req.Name)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	cat := models.Category{Name: name}
	err = h.db.WithContext(c.Request.Context()).Create(&cat).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		apierr.Respond(c, apierr.Conflict("Category already exists"))
		return
	}
	if err != nil {
		apierr.Respond(c, fmt.Errorf("create category: %w", err))
		return
	}

	h.reload(c)
	c.JSON(http.StatusCreated, cat)
}

// RenameCategory renames a category
func (h *Handler) RenameCategory(c *gin.Context) {
	id, ok := parseID(c, "Invalid category ID")
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, apierr.FromBinding(err))
		return
	}
	name, err := categoryName(req.Name)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Category{}).Where("id = ?", id).Update("name", name)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		apierr.Respond(c, apierr.Conflict("Category already exists"))
		return
	}
	if result.Error != nil {
		apierr.Respond(c, fmt.Errorf("rename category: %w", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		apierr.Respond(c, apierr.NotFound("Category not found"))
		return
	}

	h.reload(c)
	c.JSON(http.StatusOK, models.Category{ID: id, Name: name})
}

// DeleteCategory removes a category. Entries filed under it keep their
// other fields and lose the category.
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := parseID(c, "Invalid category ID")
	if !ok {
		return
	}

	var deleted int64
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.LedgerEntry{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Category{}, id)
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		apierr.Respond(c, fmt.Errorf("delete category: %w", err))
		return
	}
	if deleted == 0 {
		apierr.Respond(c, apierr.NotFound("Category not found"))
		return
	}

	h.reload(c)
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}
