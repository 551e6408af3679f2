// AngelaMos | 2026
// handler_test.go

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpa-library/library/internal/core"
	"github.com/bpa-library/library/internal/middleware"
)

func withClaims(claims *middleware.AccessTokenClaims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
		})
	}
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, withClaims(&middleware.AccessTokenClaims{}))

	rec := post(r, "/auth/register", `{"email": "a@b.io", "password": "password1", "name": "A"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = post(r, "/auth/register", `{"email": "a@b.io", "password": "password1", "name": "A"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(r, "/auth/login", `{"email": "a@b.io", "password": "password2"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")

	rec = post(r, "/auth/login", `{"email": "a@b.io", "password": "password1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")

	rec = post(r, "/auth/login", `{"email": "not-an-email", "password": "password1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerChangePasswordMustDiffer(t *testing.T) {
	svc, _, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, withClaims(&middleware.AccessTokenClaims{UserID: 1}))

	rec := post(r, "/auth/change-password",
		`{"current_password": "password1", "new_password": "password1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerLogoutReportsStoreOutage(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewService(newTestJWT(t), newFakeUsers(), core.NewRedisWithClient(rdb, "test"))
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, withClaims(&middleware.AccessTokenClaims{
		UserID:    1,
		TokenID:   "jti-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	rec := post(r, "/auth/logout", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "127.0.0.1")
}
