package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rn2903-service/internal/config"
	"rn2903-service/internal/utils"
)

func newRouter() *gin.Engine {
	r, _ := newObservedRouter()
	return r
}

func newObservedRouter() (*gin.Engine, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(utils.NewServiceLogger(logger, "test")))
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware(&config.ServerConfig{AllowedOrigins: []string{"http://bench.local"}}))
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, utils.GetRequestID(c)) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.POST("/radio/commands/:name", func(c *gin.Context) {
		utils.CodedErrorResponse(c, http.StatusBadGateway, "busy", "Radio rejected command",
			errors.New("radio set sf: device replied busy"), nil)
	})
	return r, logs
}

func requestLog(t *testing.T, logs *observer.ObservedLogs) map[string]interface{} {
	t.Helper()
	entries := logs.FilterMessage("API request").All()
	require.Len(t, entries, 1)
	return entries[0].ContextMap()
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecoveryReturnsAPIError(t *testing.T) {
	r, logs := newObservedRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.Contains(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	assert.NotContains(t, w.Body.String(), "boom")

	panics := logs.FilterMessage("Handler panicked").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "/panic", panics[0].ContextMap()["route"])

	fields := requestLog(t, logs)
	assert.EqualValues(t, http.StatusInternalServerError, fields["status_code"])
	assert.Equal(t, "INTERNAL_SERVER_ERROR", fields["error_code"])
	assert.Equal(t, []interface{}{"panic: boom"}, fields["errors"])
}

func TestLoggingRecordsErrorEnvelope(t *testing.T) {
	r, logs := newObservedRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/radio/commands/sf", nil))
	require.Equal(t, http.StatusBadGateway, w.Code)

	entries := logs.FilterMessage("API request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "/radio/commands/:name", fields["route"])
	assert.Equal(t, "/radio/commands/sf", fields["path"])
	assert.Equal(t, "busy", fields["error_code"])
	assert.Equal(t, []interface{}{"radio set sf: device replied busy"}, fields["errors"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), fields["request_id"])
}

func TestLoggingUnmatchedRoute(t *testing.T) {
	r, logs := newObservedRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	fields := requestLog(t, logs)
	assert.Equal(t, "unmatched", fields["route"])
	assert.NotContains(t, fields, "error_code")
	assert.NotContains(t, fields, "errors")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("Origin", "http://bench.local")
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)
	assert.Equal(t, "http://bench.local", w.Header().Get("Access-Control-Allow-Origin"))
}
