package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAdmin(t *testing.T, secret, authorization string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "ops", claims.Subject)
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWT(t *testing.T) {
	valid, err := SignAdminToken("secret", "ops", 5*time.Minute)
	require.NoError(t, err)
	wrongKey, err := SignAdminToken("other", "ops", 5*time.Minute)
	require.NoError(t, err)
	expired, err := SignAdminToken("secret", "ops", -5*time.Minute)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ops"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"secret unset", "", "Bearer " + valid, http.StatusUnauthorized},
		{"no header", "secret", "", http.StatusUnauthorized},
		{"not bearer", "secret", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "secret", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"expired", "secret", "Bearer " + expired, http.StatusUnauthorized},
		{"no expiry", "secret", "Bearer " + noExp, http.StatusUnauthorized},
		{"valid", "secret", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "secret", "bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, called := serveAdmin(t, tt.secret, tt.header)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.want == http.StatusOK, called)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestAdminJWTRejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec, called := serveAdmin(t, "secret", "Bearer "+unsigned)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}
