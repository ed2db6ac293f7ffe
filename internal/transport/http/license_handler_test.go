package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyserve/internal/services"
	"keyserve/internal/store"
)

const (
	testKey      = "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE"
	testHardware = "a1b2c3d4e5f60718a1b2c3d4e5f60718"
	otherDevice  = "ffffffffffffffffffffffffffffffff"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type handlerFixture struct {
	router  chi.Router
	service services.LicenseService
	store   *store.MemoryStore
	clock   *time.Time
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()

	now := fixedNow
	f := &handlerFixture{store: st, clock: &now}
	f.service = services.NewLicenseService(st, logger,
		services.WithClock(func() time.Time { return *f.clock }),
	)

	licenseHandler := NewLicenseHandler(f.service, logger, time.UTC)
	healthHandler := NewHealthHandler(f.service, logger, time.UTC, "test")
	adminHandler := NewAdminHandler(f.service, logger, time.UTC)

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/time", healthHandler.ServerTime)
		r.Mount("/license", licenseHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
	})
	f.router = r
	return f
}

func (f *handlerFixture) issue(t *testing.T, key string) {
	t.Helper()
	_, err := f.service.Issue(context.Background(), services.IssueRequest{Key: key})
	require.NoError(t, err)
}

func (f *handlerFixture) postJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func TestActivateEndpoint(t *testing.T) {
	f := newFixture(t)
	f.issue(t, testKey)

	rec := f.postJSON(t, "/api/license/activate", map[string]string{
		"license_key": testKey,
		"hardware_id": testHardware,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, true, doc["ok"])
	assert.Equal(t, "activated", doc["status"])
	assert.Equal(t, "standard", doc["license_type"])
	assert.Equal(t, "2024-03-15T12:00:00Z", doc["activated_at"])
	assert.Equal(t, "2024-04-14T12:00:00Z", doc["expires_at"])
	assert.Equal(t, "14/04/2024 12:00:00", doc["expires_at_display"])
}

func TestActivateEndpointIdempotent(t *testing.T) {
	f := newFixture(t)
	f.issue(t, testKey)

	payload := map[string]string{"license_key": testKey, "hardware_id": testHardware}
	first := f.postJSON(t, "/api/license/activate", payload)
	require.Equal(t, http.StatusOK, first.Code)

	repeat := f.postJSON(t, "/api/license/activate", payload)
	require.Equal(t, http.StatusOK, repeat.Code)
	doc := decodeBody(t, repeat)
	assert.Equal(t, "already_activated_same_device", doc["status"])
	assert.Equal(t, decodeBody(t, first)["expires_at"], doc["expires_at"])
}

func TestActivateEndpointForeignDevice(t *testing.T) {
	f := newFixture(t)
	f.issue(t, testKey)

	require.Equal(t, http.StatusOK, f.postJSON(t, "/api/license/activate", map[string]string{
		"license_key": testKey,
		"hardware_id": testHardware,
	}).Code)

	rec := f.postJSON(t, "/api/license/activate", map[string]string{
		"license_key": testKey,
		"hardware_id": otherDevice,
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, false, doc["ok"])
	assert.Equal(t, "already_activated", doc["reason"])
	assert.Equal(t, testHardware[:8], doc["bound_hardware_prefix"])
}

func TestActivateEndpointValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"malformed key", map[string]string{"license_key": "nope", "hardware_id": testHardware}},
		{"malformed hardware id", map[string]string{"license_key": testKey, "hardware_id": "XYZ"}},
		{"missing fields", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.postJSON(t, "/api/license/activate", tt.payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, decodeBody(t, rec)["ok"])
		})
	}
}

func TestActivateEndpointUnknownKey(t *testing.T) {
	f := newFixture(t)

	rec := f.postJSON(t, "/api/license/activate", map[string]string{
		"license_key": testKey,
		"hardware_id": testHardware,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["reason"])
}

func TestVerifyEndpoint(t *testing.T) {
	f := newFixture(t)
	f.issue(t, testKey)
	require.Equal(t, http.StatusOK, f.postJSON(t, "/api/license/activate", map[string]string{
		"license_key": testKey,
		"hardware_id": testHardware,
	}).Code)

	t.Run("valid", func(t *testing.T) {
		rec := f.postJSON(t, "/api/license/verify", map[string]string{
			"license_key": testKey,
			"hardware_id": testHardware,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		doc := decodeBody(t, rec)
		assert.Equal(t, "valid", doc["status"])
		assert.Equal(t, float64(30), doc["remaining_days"])
		assert.Equal(t, false, doc["lifetime"])
	})

	t.Run("hardware mismatch", func(t *testing.T) {
		rec := f.postJSON(t, "/api/license/verify", map[string]string{
			"license_key": testKey,
			"hardware_id": otherDevice,
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		doc := decodeBody(t, rec)
		assert.Equal(t, "hardware_mismatch", doc["reason"])
		assert.Equal(t, testHardware[:8], doc["bound_hardware_prefix"])
	})

	t.Run("expired", func(t *testing.T) {
		*f.clock = fixedNow.AddDate(0, 0, 31)
		defer func() { *f.clock = fixedNow }()

		rec := f.postJSON(t, "/api/license/verify", map[string]string{
			"license_key": testKey,
			"hardware_id": testHardware,
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		doc := decodeBody(t, rec)
		assert.Equal(t, "expired", doc["reason"])
		assert.Equal(t, "2024-04-14T12:00:00Z", doc["expired_at"])
	})
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, "healthy", doc["status"])
	assert.Equal(t, "test", doc["version"])
}

func TestServerTimeEndpoint(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/time", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, "2024-03-15T12:00:00Z", doc["server_time"])
	assert.Equal(t, "15/03/2024 12:00:00", doc["server_time_display"])
	assert.Equal(t, "UTC", doc["timezone"])
}
