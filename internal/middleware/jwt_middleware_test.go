package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_share/internal/auth"
)

func protectedHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := GetAdminClaims(r.Context())
		assert.True(t, ok, "claims should be in context")
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminJWT_ValidToken(t *testing.T) {
	secret := []byte("test-secret")
	token, _, err := auth.GenerateAdminJWT(secret, time.Hour)
	require.NoError(t, err)

	handler := AdminJWT(secret)(protectedHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminJWT_MissingToken(t *testing.T) {
	handler := AdminJWT([]byte("test-secret"))(protectedHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats/summary", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "detail")
}

func TestAdminJWT_InvalidToken(t *testing.T) {
	handler := AdminJWT([]byte("test-secret"))(protectedHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats/summary", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminJWT_WrongSecret(t *testing.T) {
	token, _, err := auth.GenerateAdminJWT([]byte("secret-a"), time.Hour)
	require.NoError(t, err)

	handler := AdminJWT([]byte("secret-b"))(protectedHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
