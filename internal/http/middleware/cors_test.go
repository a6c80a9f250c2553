package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(allowed []string, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	called := false
	h := CORS(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/slots/available", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	rec, called := serveCORS([]string{"https://clinic.example/"}, http.MethodGet, "https://clinic.example", false)
	assert.True(t, called)
	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Idempotent-Replayed")
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	rec, called := serveCORS([]string{"https://clinic.example"}, http.MethodGet, "https://evil.example", false)
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	rec, _ := serveCORS([]string{"*"}, http.MethodGet, "https://any.example", false)
	assert.Equal(t, "https://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	rec, called := serveCORS([]string{"https://clinic.example"}, http.MethodOptions, "https://clinic.example", true)
	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, called = serveCORS([]string{"https://clinic.example"}, http.MethodOptions, "https://evil.example", true)
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
