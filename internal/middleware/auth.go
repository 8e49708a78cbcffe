// Package middleware provides authentication, logging, metrics, and rate limiting middleware.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"booking/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Fiber locals set by AuthRequired.
const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

// ActorClaims is the JWT payload identifying the caller.
// Subject holds the user id; Role one of faculty, supervisor, trustee.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var jwtSecret []byte

// InitMiddleware initializes authentication middleware with the signing secret.
func InitMiddleware(secret string) {
	jwtSecret = []byte(secret)
}

// IssueToken signs a token for the given actor. Used by dev tooling and tests.
func IssueToken(secret string, userID uint, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return unauthorized(c, "Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return unauthorized(c, "Invalid authorization header format")
	}

	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return unauthorized(c, "Invalid or expired token")
	}

	if claims.Subject == "" {
		return unauthorized(c, "Invalid token structure - missing subject")
	}
	userIDVal, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return unauthorized(c, "Invalid user ID in token")
	}

	switch models.Role(claims.Role) {
	case models.RoleFaculty, models.RoleSupervisor, models.RoleTrustee:
	default:
		return unauthorized(c, "Invalid role in token")
	}

	c.Locals(LocalUserID, uint(userIDVal))
	c.Locals(LocalRole, claims.Role)

	return c.Next()
}

// RequireRole rejects callers whose token role is not in roles. Must run after AuthRequired.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		for _, r := range roles {
			if string(r) == role {
				return c.Next()
			}
		}
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewAccessDeniedError("Role not permitted for this operation"))
	}
}
