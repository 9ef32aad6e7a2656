package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Invalid("value", "must be positive"), http.StatusBadRequest},
		{Forbidden("nope"), http.StatusForbidden},
		{NotFound("Group not found"), http.StatusNotFound},
		{Conflict("Already a member"), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", Conflict("dup")), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("decide: %w", Conflict("already decided"))
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))
	assert.False(t, Is(errors.New("plain"), KindConflict))
}

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/validation", func(c *gin.Context) { Respond(c, Invalid("date", "Date cannot be in the future.")) })
	r.GET("/internal", func(c *gin.Context) { Respond(c, errors.New("db closed")) })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/validation", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Date cannot be in the future.", body.Fields["date"])

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/internal", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), "db closed")
}

func TestFromBinding(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type request struct {
		InvitationToken string `json:"invitation_token" binding:"required"`
		Status          string `json:"status" binding:"required,oneof=accepted denied"`
	}

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			Respond(c, FromBinding(err))
			return
		}
		c.Status(http.StatusNoContent)
	})

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"maybe"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "invitation_token")
	assert.Contains(t, body.Fields, "status")

	resp = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"body"`)
}
