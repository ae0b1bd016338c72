package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hasib2k/online-store/internal/config"
	"github.com/hasib2k/online-store/internal/orders"
	"github.com/hasib2k/online-store/internal/session"
)

func fileOnlyConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1, "customerName": "Rahim", "phone": "017", "status": "pending"}]`), 0o644))
	return &config.Config{
		App:       config.AppConfig{Timezone: "UTC"},
		Admin:     config.AdminConfig{Password: "s3cret"},
		FileStore: config.FileStoreConfig{Path: path, Lock: true},
		Reconcile: config.ReconcileConfig{KeyLength: 10},
		Metrics:   config.MetricsConfig{Backend: "prometheus", Namespace: "online_store"},
		HTTP:      config.HTTPConfig{MaxBodySize: 1 << 20},
	}
}

func TestNeedsAWS(t *testing.T) {
	cfg := fileOnlyConfig(t)
	assert.False(t, needsAWS(cfg))

	cfg.SQS.QueueURL = "https://sqs.us-east-1.amazonaws.com/1/orders"
	assert.True(t, needsAWS(cfg))
}

func TestBuildRouter_FileOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r, cleanup, err := buildRouter(context.Background(), fileOnlyConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.Header.Set(session.HeaderName, "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rahim")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "online_store_reconcile_passes_total"), w.Body.String())
}

func TestBuildRouter_NoMetricsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := fileOnlyConfig(t)
	cfg.Metrics.Backend = "none"
	r, cleanup, err := buildRouter(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuildRouter_DatabaseDownAtStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := fileOnlyConfig(t)
	dbDir := filepath.Join(t.TempDir(), "pg")
	cfg.Database = config.DatabaseConfig{URL: filepath.Join(dbDir, "orders.db"), MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: 1}

	r, cleanup, err := buildRouter(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	list := func() string {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		req.Header.Set(session.HeaderName, "s3cret")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	body := list()
	assert.Contains(t, body, "Rahim")
	assert.NotContains(t, body, "Karim")

	// the database comes up with a row of its own
	require.NoError(t, os.MkdirAll(dbDir, 0o755))
	db, err := orders.OpenSQL(cfg.Database)
	require.NoError(t, err)
	seed := orders.NewSQLStore(db)
	require.NoError(t, seed.AutoMigrate())
	require.NoError(t, seed.Create(context.Background(), orders.Order{ID: "50", CustomerName: "Karim", Phone: "018"}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	body = list()
	assert.Contains(t, body, "Rahim")
	assert.Contains(t, body, "Karim")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders", strings.NewReader(`{"id": 50, "action": "complete"}`))
	req.Header.Set(session.HeaderName, "s3cret")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
