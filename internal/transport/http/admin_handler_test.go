package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.postJSON(t, "/api/admin/licenses", map[string]string{
		"license_key":   testKey,
		"license_type":  "standard",
		"duration_days": "90",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, testKey, doc["key"])
	assert.Equal(t, "standard", doc["license_type"])
	assert.Equal(t, float64(90), doc["duration_days"])
	assert.Equal(t, false, doc["activated"])
	assert.Equal(t, "2024-03-15T12:00:00Z", doc["created_at"])
}

func TestIssueEndpointGeneratesKey(t *testing.T) {
	f := newFixture(t)

	rec := f.postJSON(t, "/api/admin/licenses", map[string]string{})
	require.Equal(t, http.StatusCreated, rec.Code)

	doc := decodeBody(t, rec)
	key, ok := doc["key"].(string)
	require.True(t, ok)
	assert.Len(t, key, 36)
	assert.Equal(t, "standard", doc["license_type"])
}

func TestIssueEndpointDuplicate(t *testing.T) {
	f := newFixture(t)
	payload := map[string]string{"license_key": testKey}

	require.Equal(t, http.StatusCreated, f.postJSON(t, "/api/admin/licenses", payload).Code)

	rec := f.postJSON(t, "/api/admin/licenses", payload)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_issued", decodeBody(t, rec)["reason"])
}

func TestIssueEndpointLifetime(t *testing.T) {
	f := newFixture(t)

	rec := f.postJSON(t, "/api/admin/licenses", map[string]string{
		"license_key":  testKey,
		"license_type": "lifetime",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, "lifetime", doc["license_type"])
	assert.Equal(t, "9999-12-31T23:59:59Z", doc["expires_at"])
}

func TestIssueEndpointRejectsUnknownType(t *testing.T) {
	f := newFixture(t)

	rec := f.postJSON(t, "/api/admin/licenses", map[string]string{
		"license_key":  testKey,
		"license_type": "enterprise",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEndpoint(t *testing.T) {
	f := newFixture(t)
	f.issue(t, testKey)
	f.issue(t, "11111111-2222-3333-4444-555555555555")

	require.Equal(t, http.StatusOK, f.postJSON(t, "/api/license/activate", map[string]string{
		"license_key": testKey,
		"hardware_id": testHardware,
	}).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/licenses", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody(t, rec)
	assert.Equal(t, float64(2), doc["count"])

	licenses, ok := doc["licenses"].([]interface{})
	require.True(t, ok)
	require.Len(t, licenses, 2)

	var activated map[string]interface{}
	for _, l := range licenses {
		entry := l.(map[string]interface{})
		if entry["key"] == testKey {
			activated = entry
		}
	}
	require.NotNil(t, activated)
	assert.Equal(t, true, activated["activated"])
	assert.Equal(t, testHardware[:8], activated["hardware_prefix"])
}
