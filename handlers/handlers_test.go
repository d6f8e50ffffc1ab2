package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"citifix/database"
	"citifix/engine"
	"citifix/middleware"
	"citifix/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type silentNotifier struct{}

func (silentNotifier) Post(ctx context.Context, imageRef, caption string) error { return nil }

func testCategorize(title, description string) string { return "Roads" }

func newTestServer(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *middleware.Auth, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	svc := database.NewWithDB(db, testCategorize)
	e := engine.New(svc, svc, silentNotifier{}, nil, 20, 10, time.Second)
	auth := middleware.NewAuth("test-secret", time.Hour)
	h := New(e, svc, auth)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v3")
	api.POST("/auth/register", h.Register)
	api.GET("/complaints/:id", h.GetComplaint)
	protected := api.Group("", auth.RequireAuth())
	protected.POST("/complaints", h.CreateComplaint)
	protected.POST("/complaints/:id/vote", h.Vote)
	admin := protected.Group("", auth.RequireAdmin())
	admin.POST("/complaints/:id/status", h.UpdateStatus)

	return r, mock, auth, db
}

func TestGetComplaintNotFound(t *testing.T) {
	r, mock, _, db := newTestServer(t)
	defer db.Close()

	mock.ExpectQuery("FROM complaints WHERE id = (.+)").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v3/complaints/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateComplaintRequiresAuth(t *testing.T) {
	r, _, _, db := newTestServer(t)
	defer db.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/complaints",
		strings.NewReader(`{"title":"Pothole","description":"deep crack"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDuplicateVoteConflict(t *testing.T) {
	r, mock, auth, db := newTestServer(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE complaints SET votes = votes (.+) WHERE id = (.+)").
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT IGNORE INTO complaint_votes").
		WithArgs("c-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	token, err := auth.GenerateToken("user-1", "Asha", models.RoleCitizen)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/complaints/c-1/vote", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	r, _, auth, db := newTestServer(t)
	defer db.Close()

	token, err := auth.GenerateToken("user-1", "Asha", models.RoleCitizen)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/complaints/c-1/status",
		strings.NewReader(`{"status":"resolved"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReopenResolvedRejected(t *testing.T) {
	r, mock, auth, db := newTestServer(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM complaints WHERE id = (.+) FOR UPDATE").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.StatusResolved))
	mock.ExpectRollback()

	token, err := auth.GenerateToken("admin-1", "Ravi", models.RoleAdmin)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/complaints/c-1/status",
		strings.NewReader(`{"status":"open"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterIssuesToken(t *testing.T) {
	r, mock, _, db := newTestServer(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "Asha", models.RoleCitizen, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/auth/register",
		strings.NewReader(`{"name":"Asha"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "token")
}
