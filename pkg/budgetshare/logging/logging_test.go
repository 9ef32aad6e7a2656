package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/budgetshare/pkg/budgetshare/config"
)

func TestSetupLoggingLevel(t *testing.T) {
	logger := SetupLogging(config.LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.Level)

	logger = SetupLogging(config.LogConfig{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logger.Level)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.Formatter = &logrus.JSONFormatter{}

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/groups/:id", func(c *gin.Context) {
		c.Set("user_id", uint(7))
		FromContext(c).AddData("group_id", c.Param("id"))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/groups/3", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Request.Complete", line["msg"])
	assert.Equal(t, "/groups/:id", line["route"])
	assert.Equal(t, "3", line["group_id"])
	assert.EqualValues(t, http.StatusNoContent, line["status"])
	assert.EqualValues(t, 7, line["user_id"])
	assert.Contains(t, line, "duration_ms")
}
