package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupHandler(t *testing.T) http.Handler {
	t.Helper()
	return NewHandler("test", nil).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

// =============================================================================
// Route Tests
// =============================================================================

func TestIndex(t *testing.T) {
	rec := doRequest(t, setupHandler(t), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello World")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, setupHandler(t), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestOpenAPI(t *testing.T) {
	rec := doRequest(t, setupHandler(t), http.MethodGet, "/openapi.json")

	assert.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Info  map[string]any `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Greeter", doc.Info["title"])
	assert.Contains(t, doc.Paths, "/")
	assert.Contains(t, doc.Paths, "/health")
}

func TestUnknownRoute(t *testing.T) {
	rec := doRequest(t, setupHandler(t), http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	rec := doRequest(t, setupHandler(t), http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
