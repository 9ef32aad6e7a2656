package admin

import (
	"bytes"
	"context"
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
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/database"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if err := refdata.Seed(context.Background(), db, []string{"rent"}); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}
	return db
}

// setupTestRouter mounts the admin routes behind a fixed identity.
func setupTestRouter(t *testing.T, db *gorm.DB, actor *models.User) (*gin.Engine, *refdata.Catalog) {
	gin.SetMode(gin.TestMode)
	catalog := refdata.NewCatalog(db)
	require.NoError(t, catalog.Load(context.Background()))

	r := gin.New()
	rg := r.Group("/admin", func(c *gin.Context) {
		auth.SetIdentity(c, actor.ID, actor.Email, string(actor.SystemRole))
		c.Next()
	}, auth.RequireAdmin())
	NewHandler(db, catalog).RegisterRoutes(rg)
	return r, catalog
}

func createTestUser(t *testing.T, db *gorm.DB, email, name string, role models.SystemRole) *models.User {
	hashedPassword, _ := auth.HashPassword("Passw0rd!")
	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hashedPassword,
		SystemRole:   role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestGroup(t *testing.T, db *gorm.DB, creator *models.User, name string) *models.Group {
	group := &models.Group{Name: name, CreatorID: creator.ID}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}
	db.Create(&models.Membership{UserID: creator.ID, GroupID: group.ID, Role: models.RoleAdmin})
	return group
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNonAdminRejected(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "user@test.com", "User", models.SystemRoleUser)
	r, _ := setupTestRouter(t, db, user)

	w := doRequest(r, "GET", "/admin/users", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
}

func TestListUsers(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin User", models.SystemRoleAdmin)
	createTestUser(t, db, "john@test.com", "John Doe", models.SystemRoleUser)
	createTestUser(t, db, "jane@test.com", "Jane Doe", models.SystemRoleUser)
	r, _ := setupTestRouter(t, db, admin)

	w := doRequest(r, "GET", "/admin/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var users []UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("Expected 3 users, got %d", len(users))
	}

	w = doRequest(r, "GET", "/admin/users?q=john", nil)
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 1 {
		t.Errorf("Expected 1 user matching search, got %d", len(users))
	}

	w = doRequest(r, "GET", "/admin/users?role=admin", nil)
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 1 || users[0].Email != "admin@test.com" {
		t.Errorf("Expected only the admin, got %+v", users)
	}
}

func TestGetUser(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	user := createTestUser(t, db, "user@test.com", "Test User", models.SystemRoleUser)
	createTestGroup(t, db, user, "Home")
	r, _ := setupTestRouter(t, db, admin)

	w := doRequest(r, "GET", fmt.Sprintf("/admin/users/%d", user.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp UserResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Email != user.Email {
		t.Errorf("Expected email %s, got %s", user.Email, resp.Email)
	}
	if resp.GroupCount != 1 || resp.CreatedCount != 1 {
		t.Errorf("Expected 1 group, got %+v", resp)
	}

	w = doRequest(r, "GET", "/admin/users/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestUpdateUser(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	user := createTestUser(t, db, "user@test.com", "Test User", models.SystemRoleUser)
	r, _ := setupTestRouter(t, db, admin)

	newName := "Updated Name"
	newRole := "admin"
	w := doRequest(r, "PUT", fmt.Sprintf("/admin/users/%d", user.ID), UpdateUserRequest{
		Name:       &newName,
		SystemRole: &newRole,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp UserResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Name != newName {
		t.Errorf("Expected name %s, got %s", newName, resp.Name)
	}
	if resp.SystemRole != newRole {
		t.Errorf("Expected role %s, got %s", newRole, resp.SystemRole)
	}

	badRole := "root"
	w = doRequest(r, "PUT", fmt.Sprintf("/admin/users/%d", user.ID), UpdateUserRequest{SystemRole: &badRole})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown role, got %d", w.Code)
	}
}

func TestUpdateUserCannotDemoteSelf(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	r, _ := setupTestRouter(t, db, admin)

	newRole := "user"
	w := doRequest(r, "PUT", fmt.Sprintf("/admin/users/%d", admin.ID), UpdateUserRequest{SystemRole: &newRole})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	owner := createTestUser(t, db, "owner@test.com", "Owner", models.SystemRoleUser)
	member := createTestUser(t, db, "member@test.com", "Member", models.SystemRoleUser)
	group := createTestGroup(t, db, owner, "Home")
	db.Create(&models.Membership{UserID: member.ID, GroupID: group.ID, Role: models.RoleEdit})

	var expense models.EntryType
	db.Where("name = ?", models.EntryTypeExpense).First(&expense)
	entry := models.LedgerEntry{
		GroupID: group.ID, TypeID: expense.ID, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Title: "Rent", Value: decimal.RequireFromString("10.00"), ByID: &member.ID,
	}
	require.NoError(t, db.Create(&entry).Error)

	r, _ := setupTestRouter(t, db, admin)

	w := doRequest(r, "DELETE", fmt.Sprintf("/admin/users/%d", admin.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "cannot delete yourself")

	w = doRequest(r, "DELETE", fmt.Sprintf("/admin/users/%d", owner.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code, "group creator")

	w = doRequest(r, "DELETE", fmt.Sprintf("/admin/users/%d", member.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var memberships int64
	db.Model(&models.Membership{}).Where("user_id = ?", member.ID).Count(&memberships)
	assert.Zero(t, memberships)

	var reloaded models.LedgerEntry
	require.NoError(t, db.First(&reloaded, entry.ID).Error)
	assert.Nil(t, reloaded.ByID)

	w = doRequest(r, "GET", fmt.Sprintf("/admin/users/%d", member.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	user := createTestUser(t, db, "user@test.com", "User", models.SystemRoleUser)
	group := createTestGroup(t, db, admin, "Home")
	db.Create(&models.InvitationRequest{UserID: user.ID, GroupID: group.ID, Status: models.InvitationPending})

	var income models.EntryType
	db.Where("name = ?", models.EntryTypeIncome).First(&income)
	for _, v := range []string{"10.25", "4.75"} {
		db.Create(&models.LedgerEntry{
			GroupID: group.ID, TypeID: income.ID, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Title: "Pay", Value: decimal.RequireFromString(v),
		})
	}

	r, _ := setupTestRouter(t, db, admin)
	w := doRequest(r, "GET", "/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats.TotalUsers)
	assert.EqualValues(t, 1, stats.AdminUsers)
	assert.EqualValues(t, 1, stats.TotalGroups)
	assert.EqualValues(t, 1, stats.PendingInvitations)
	assert.EqualValues(t, 2, stats.TotalEntries)
	assert.Equal(t, "15.00", stats.TotalEntryValue)
	assert.Equal(t, 1, stats.TotalCategories)
}

func TestGetStatsStorageError(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	r, _ := setupTestRouter(t, db, admin)

	require.NoError(t, db.Migrator().DropTable(&models.APIKey{}))

	w := doRequest(r, "GET", "/admin/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCategoryManagement(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	r, catalog := setupTestRouter(t, db, admin)

	w := doRequest(r, "POST", "/admin/categories", CategoryRequest{Name: " pets "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pets models.Category
	json.Unmarshal(w.Body.Bytes(), &pets)
	assert.Equal(t, "pets", pets.Name)

	got, ok := catalog.Category(pets.ID)
	require.True(t, ok, "catalog reloaded after create")
	assert.Equal(t, "pets", got.Name)

	w = doRequest(r, "POST", "/admin/categories", CategoryRequest{Name: "rent"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(r, "PUT", fmt.Sprintf("/admin/categories/%d", pets.ID), CategoryRequest{Name: "animals"})
	require.Equal(t, http.StatusOK, w.Code)
	got, _ = catalog.Category(pets.ID)
	assert.Equal(t, "animals", got.Name)

	w = doRequest(r, "PUT", "/admin/categories/999", CategoryRequest{Name: "nothing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, "DELETE", fmt.Sprintf("/admin/categories/%d", pets.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok = catalog.Category(pets.ID)
	assert.False(t, ok)

	w = doRequest(r, "DELETE", fmt.Sprintf("/admin/categories/%d", pets.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
