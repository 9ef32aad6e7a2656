package importexport

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/access"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/database"
	"github.com/mikepea/budgetshare/pkg/budgetshare/entries"
	"github.com/mikepea/budgetshare/pkg/budgetshare/groups"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
)

type testEnv struct {
	db      *gorm.DB
	router  *gin.Engine
	entries *entries.Service
	expense models.EntryType
	rent    models.Category
	group   models.Group
	admin   models.User
	reader  models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	ctx := context.Background()
	require.NoError(t, refdata.Seed(ctx, db, []string{"rent"}))
	catalog := refdata.NewCatalog(db)
	require.NoError(t, catalog.Load(ctx))

	policy := access.New(db)
	env := &testEnv{db: db, entries: entries.NewService(db, policy, catalog, time.UTC)}
	env.expense, _ = catalog.EntryTypeByName(models.EntryTypeExpense)
	env.rent = catalog.Categories()[0]

	env.admin = createTestUser(t, db, "admin@example.com")
	env.reader = createTestUser(t, db, "reader@example.com")
	s, err := groups.NewService(db, policy).Create(ctx, env.admin.ID, "Home")
	require.NoError(t, err)
	env.group = s.Group
	require.NoError(t, db.Create(&models.Membership{UserID: env.reader.ID, GroupID: env.group.ID, Role: models.RoleReadOnly}).Error)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(NewExporter(env.entries, catalog), NewImporter(env.entries, policy))
	handler.RegisterGroupRoutes(r.Group("/groups", auth.AuthMiddleware(db)))
	env.router = r
	return env
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, Name: "Test User", SystemRole: models.SystemRoleUser}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func (e *testEnv) do(method, path string, body interface{}, user models.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) seed(t *testing.T, date, title, value string) {
	t.Helper()
	v := decimal.RequireFromString(value)
	_, err := e.entries.Create(context.Background(), e.admin.ID, e.group.ID, entries.Input{
		TypeID: &e.expense.ID, Date: &date, Title: &title, CategoryID: &e.rent.ID, Value: &v,
	})
	require.NoError(t, err)
}

func TestExportJSON(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, "2024-01-01", "January rent", "900.00")
	env.seed(t, "2024-02-01", "February rent", "905.50")

	resp := env.do("GET", fmt.Sprintf("/groups/%d/export", env.group.ID), nil, env.reader)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var payload struct {
		Entries []Row `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Entries, 2)
	assert.Equal(t, "February rent", payload.Entries[0].Title)
	assert.Equal(t, "905.50", payload.Entries[0].Value)
	assert.Equal(t, "expense", payload.Entries[0].Type)
	assert.Equal(t, "rent", payload.Entries[0].Category)
}

func TestExportCSV(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, "2024-01-01", "January rent", "900.00")

	resp := env.do("GET", fmt.Sprintf("/groups/%d/export?format=csv", env.group.ID), nil, env.reader)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Disposition"), ".csv")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"2024-01-01", "expense", "rent", "January rent", "900.00", ""}, records[1])
}

func TestExportXLSX(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, "2024-01-01", "January rent", "900.00")
	env.seed(t, "2024-02-01", "February rent", "905.50")

	resp := env.do("GET", fmt.Sprintf("/groups/%d/export?format=xlsx", env.group.ID), nil, env.admin)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, xlsxContentType, resp.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "February rent", rows[1][3])

	value, err := f.GetCellValue(sheetName, "E3")
	require.NoError(t, err)
	assert.Equal(t, "900", value)
}

func TestExportRejectsOutsidersAndBadFormat(t *testing.T) {
	env := setupTestEnv(t)
	outsider := createTestUser(t, env.db, "outsider@example.com")

	resp := env.do("GET", fmt.Sprintf("/groups/%d/export", env.group.ID), nil, outsider)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do("GET", fmt.Sprintf("/groups/%d/export?format=pdf", env.group.ID), nil, env.admin)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestImport(t *testing.T) {
	env := setupTestEnv(t)
	path := fmt.Sprintf("/groups/%d/import", env.group.ID)

	body := map[string]interface{}{
		"entries": []map[string]interface{}{
			{"type_id": env.expense.ID, "date": "2024-01-01", "title": "Rent", "category_id": env.rent.ID, "value": "900.00"},
			{"type_id": env.expense.ID, "date": "2024-01-02", "title": "Bad", "category_id": env.rent.ID, "value": "0"},
			{"type_id": env.expense.ID, "date": "2024-01-03", "title": "Water", "category_id": env.rent.ID, "value": "31.20"},
		},
	}

	resp := env.do("POST", path, body, env.reader)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do("POST", path, body, env.admin)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Fields, "value")

	var count int64
	env.db.Model(&models.LedgerEntry{}).Where("group_id = ?", env.group.ID).Count(&count)
	assert.EqualValues(t, 2, count)
}
