package refdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/database"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, db, []string{"no category", "rent"}))
	require.NoError(t, Seed(ctx, db, []string{"no category", "rent", "pets"}))

	var types, categories int64
	db.Model(&models.EntryType{}).Count(&types)
	db.Model(&models.Category{}).Count(&categories)
	assert.EqualValues(t, 2, types)
	assert.EqualValues(t, 3, categories)
}

func TestCatalogLookups(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, db, []string{"rent", "groceries"}))

	catalog := NewCatalog(db)
	_, ok := catalog.EntryTypeByName(models.EntryTypeExpense)
	assert.False(t, ok, "empty before Load")

	require.NoError(t, catalog.Load(ctx))

	expense, ok := catalog.EntryTypeByName(models.EntryTypeExpense)
	require.True(t, ok)
	got, ok := catalog.EntryType(expense.ID)
	require.True(t, ok)
	assert.Equal(t, models.EntryTypeExpense, got.Name)

	cats := catalog.Categories()
	require.Len(t, cats, 2)
	assert.Equal(t, "groceries", cats[0].Name)

	_, ok = catalog.Category(9999)
	assert.False(t, ok)
}

func TestReloadPicksUpNewRows(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, db, nil))

	catalog := NewCatalog(db)
	require.NoError(t, catalog.Load(ctx))
	assert.Empty(t, catalog.Categories())

	cat := models.Category{Name: "pets"}
	require.NoError(t, db.Create(&cat).Error)
	_, ok := catalog.Category(cat.ID)
	assert.False(t, ok, "snapshot must not change until reloaded")

	require.NoError(t, catalog.Load(ctx))
	_, ok = catalog.Category(cat.ID)
	assert.True(t, ok)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, db, []string{"no category"}))
	catalog := NewCatalog(db)
	require.NoError(t, catalog.Load(ctx))

	r := gin.New()
	NewHandler(catalog).RegisterRoutes(r.Group("/api"))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/entry-types", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var types []models.EntryType
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &types))
	require.Len(t, types, 2)
	assert.Equal(t, models.EntryTypeIncome, types[0].Name)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "no category")
}
