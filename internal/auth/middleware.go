package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Session *domain.Session
	Actor   domain.Actor
}

// AuthMiddleware validates bearer tokens and resolves the caller's role.
type AuthMiddleware struct {
	tokens *TokenManager
	roles  repository.RoleRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, roles repository.RoleRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, roles: roles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	token := ""
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}
		token = strings.TrimSpace(parts[1])
	} else {
		// EventSource cannot set headers, so streams pass the token as a query parameter.
		token = c.Query("access_token")
	}
	if token == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	session, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	role, err := m.roles.GetRole(c.UserContext(), session.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewForbidden("no role assigned")
		}
		return apperrors.NewUnavailable(err)
	}

	c.Locals(principalKey, &Principal{
		Session: session,
		Actor:   domain.Actor{UserID: session.UserID, Role: role},
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ActorFromContext returns the caller, or the zero actor when unauthenticated.
func ActorFromContext(c *fiber.Ctx) domain.Actor {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}
	}
	return principal.Actor
}
