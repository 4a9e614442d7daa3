package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/lms-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issuedAt = time.Date(2026, time.May, 10, 8, 0, 0, 0, time.UTC)

func newIssuer(secret string) *TokenIssuer {
	i := NewTokenIssuer(secret, time.Hour)
	i.now = func() time.Time { return issuedAt }
	return i
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	issuer := newIssuer("s3cret")
	token, err := issuer.Issue(models.User{ID: "u1", Role: models.RoleInstructor})
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
	assert.Equal(t, "u1", claims.Subject)
	assert.True(t, claims.ExpiresAt.Time.Equal(issuedAt.Add(time.Hour)))
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	issuer := newIssuer("s3cret")
	valid, err := issuer.Issue(models.User{ID: "u1", Role: models.RoleStudent})
	require.NoError(t, err)

	expired := newIssuer("s3cret")
	expired.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }

	otherSecret := newIssuer("different")

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, &Claims{
		UserID: "u1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "u1",
		Role:   "root",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *TokenIssuer
		token    string
	}{
		{"expired", expired, valid},
		{"wrong secret", otherSecret, valid},
		{"wrong algorithm", issuer, hs384},
		{"unknown role", issuer, badRole},
		{"garbage", issuer, "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(claims.UserID))
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	issuer := newIssuer("s3cret")
	token, err := issuer.Issue(models.User{ID: "u1", Role: models.RoleStudent})
	require.NoError(t, err)
	handler := Middleware(issuer)(okHandler(t))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Unauthorized", body["error"])
	})

	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	handler := RequireRole(models.RoleInstructor, models.RoleAdmin)(okHandler(t))
	serve := func(role models.Role) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: "u1", Role: role}))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, serve(models.RoleInstructor))
	assert.Equal(t, http.StatusForbidden, serve(models.RoleStudent))
	assert.Equal(t, http.StatusUnauthorized, serve(""))
}
