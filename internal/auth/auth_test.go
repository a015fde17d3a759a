package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/repository/memstore"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "issuer-a", 5)
	token, expires, err := tm.GenerateToken("user-1", "a@example.com")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	session, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "a@example.com", session.Email)
	assert.NotEmpty(t, session.TokenID)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "issuer-a", 5)

	otherIssuer, _, err := NewTokenManager("secret", "issuer-b", 5).GenerateToken("user-1", "")
	require.NoError(t, err)
	_, err = tm.ParseToken(otherIssuer)
	assert.Error(t, err)

	otherSecret, _, err := NewTokenManager("nope", "issuer-a", 5).GenerateToken("user-1", "")
	require.NoError(t, err)
	_, err = tm.ParseToken(otherSecret)
	assert.Error(t, err)

	expired := NewTokenManager("secret", "issuer-a", 5)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.GenerateToken("user-1", "")
	require.NoError(t, err)
	_, err = tm.ParseToken(old)
	assert.Error(t, err)
}

func newApp(t *testing.T) (*fiber.App, *TokenManager) {
	t.Helper()
	store := memstore.New()
	repos := store.Repositories()
	require.NoError(t, repos.Roles.Assign(context.Background(), &domain.RoleAssignment{UserID: "student-1", Role: domain.RoleStudent}))
	require.NoError(t, repos.Roles.Assign(context.Background(), &domain.RoleAssignment{UserID: "admin-1", Role: domain.RoleAdmin}))

	tm := NewTokenManager("secret", "", 5)
	mw := NewAuthMiddleware(tm, repos.Roles)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Code)
	}})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		return c.SendString(string(ActorFromContext(c).Role))
	})
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tm
}

func TestAuthMiddleware(t *testing.T) {
	app, tm := newApp(t)
	studentToken, _, err := tm.GenerateToken("student-1", "")
	require.NoError(t, err)
	adminToken, _, err := tm.GenerateToken("admin-1", "")
	require.NoError(t, err)
	strangerToken, _, err := tm.GenerateToken("stranger", "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"malformed header", "/me", "Token abc", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"no role", "/me", "Bearer " + strangerToken, http.StatusForbidden},
		{"student", "/me", "Bearer " + studentToken, http.StatusOK},
		{"student on admin route", "/admin", "Bearer " + studentToken, http.StatusForbidden},
		{"admin", "/admin", "Bearer " + adminToken, http.StatusNoContent},
		{"query token", "/me?access_token=" + studentToken, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
