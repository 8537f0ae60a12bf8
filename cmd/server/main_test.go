package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kwehner/focalpoint/internal/cache"
	"github.com/kwehner/focalpoint/internal/store"
	"github.com/kwehner/focalpoint/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error                     { return s.pingErr }
func (s *testStore) CreateJob(_ context.Context, _ *models.Job) error { return nil }
func (s *testStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) NextEligibleJob(_ context.Context) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) ClaimJob(_ context.Context, _ uuid.UUID, _, _ string) (bool, error) {
	return false, nil
}
func (s *testStore) CompleteJob(_ context.Context, _ uuid.UUID, _ *models.AnalysisReport) (bool, error) {
	return false, nil
}
func (s *testStore) FailJob(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return false, nil
}
func (s *testStore) UpdateThinking(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return false, nil
}
func (s *testStore) ListRecoverable(_ context.Context, _ time.Time) ([]*models.Job, error) {
	return nil, nil
}
func (s *testStore) RecoverJob(_ context.Context, _ uuid.UUID) (bool, error) { return false, nil }
func (s *testStore) ListStalled(_ context.Context, _ time.Time) ([]*models.Job, error) {
	return nil, nil
}

var _ store.Store = (*testStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type testCache struct {
	pingErr error
}

func (c *testCache) Ping(_ context.Context) error { return c.pingErr }
func (c *testCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *testCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*testCache)(nil)

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	h := healthHandler(&testStore{pingErr: errors.New("connection refused")}, &testCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "degraded", details["database"])
	assert.Equal(t, "ok", details["cache"])
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{pingErr: errors.New("redis down")})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_BothDegraded(t *testing.T) {
	h := healthHandler(
		&testStore{pingErr: errors.New("db down")},
		&testCache{pingErr: errors.New("redis down")},
	)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "ANALYZER_BASE_URL",
		"FOCALPOINT_API_KEY_HASH", "FOCALPOINT_RELAY_TOKEN_HASH",
	} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("ANALYZER_BASE_URL", "http://localhost:9000")
	t.Setenv("FOCALPOINT_API_KEY_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("FOCALPOINT_RELAY_TOKEN_HASH", "$2a$10$vutsrqponmlkjihgfedcba")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
