package routes

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "rn2903-service/docs"
	"rn2903-service/internal/config"
	"rn2903-service/internal/middleware"
	"rn2903-service/internal/protocol"
	"rn2903-service/internal/repository"
	"rn2903-service/internal/service"
	"rn2903-service/internal/simulator"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{AllowedOrigins: []string{"*"}},
		App:       config.AppConfig{Name: "rn2903-service", Version: "test", Environment: "test"},
		Discovery: config.DiscoveryConfig{ScanTimeout: time.Second},
	}

	registry := protocol.NewRegistry()
	simulator.Register(registry)
	address := "sim://" + uuid.NewString()

	repo := repository.NewFileRepository(filepath.Join(t.TempDir(), "rn2903_config.json"), nil)
	radio := service.NewRadioService(registry, service.Options{Address: address}, repo, nil, nil)
	discovery := service.NewDiscoveryService(cfg, registry, address, radio.Events(), nil)

	return NewRouter(cfg, zap.NewNop(), nil, radio, discovery).SetupRouter()
}

func TestRoutesRegistered(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/live", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/radio/config", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/discovery/scanners", http.StatusOK},
		{http.MethodGet, "/docs", http.StatusMovedPermanently},
		{http.MethodGet, "/api/v1/devices", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestSwaggerDocument(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/radio/commands")
	assert.Contains(t, w.Body.String(), "/discovery/scan")
}
