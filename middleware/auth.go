// Package middleware provides the authentication gate and role checks for
// protected routes.
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

const (
	localsUserID = "auth_user_id"
	localsRole   = "auth_role"

	tokenCookie = "token"
)

// Claims are the JWT claims issued at login and verified by the gate.
type Claims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email,omitempty"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies bearer credentials and resolves caller identity.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates the gate with the HS256 signing secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// Handler returns the Fiber middleware. The credential is taken from the
// Authorization header or, failing that, the token cookie. The 401 message
// identifies whether the credential was missing, expired, or invalid; a
// malformed Authorization header counts as invalid, not missing.
func (m *AuthMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, supplied := extractToken(c)
		if tokenString == "" {
			if supplied {
				return shared.Unauthenticated("invalid token")
			}
			return shared.Unauthenticated("missing authentication token")
		}

		claims, err := m.validateToken(tokenString)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"path":  c.Path(),
				"error": err,
			}).Warn("Token validation failed")

			if errors.Is(err, jwt.ErrTokenExpired) {
				return shared.Unauthenticated("token expired")
			}
			return shared.Unauthenticated("invalid token")
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return shared.Unauthenticated("invalid token")
		}

		c.Locals(localsUserID, userID)
		c.Locals(localsRole, claims.Role)
		return c.Next()
	}
}

// RequireRole gates a route group on the caller's role. It must run after
// Handler.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CallerRole(c) != role {
			return shared.Forbidden("insufficient role for this operation")
		}
		return c.Next()
	}
}

// CallerID returns the authenticated user's id from the request context.
func CallerID(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals(localsUserID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// CallerRole returns the authenticated user's role from the request context.
func CallerRole(c *fiber.Ctx) models.Role {
	if role, ok := c.Locals(localsRole).(models.Role); ok {
		return role
	}
	return ""
}

// extractToken returns the credential and whether one was supplied at all.
// A header that is present but not a Bearer credential yields ("", true).
func extractToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], true
		}
		return "", true
	}
	if cookie := c.Cookies(tokenCookie); cookie != "" {
		return cookie, true
	}
	return "", false
}

func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
