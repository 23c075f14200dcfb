package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/pkg/httputil"
)

// TokenClaims represents the JWT claims structure shared with the other
// flow services
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"uid"`
	Email     string    `json:"email"`
	TokenType string    `json:"type"` // "access" or "refresh"
}

// AuthConfig holds configuration for the auth middleware
type AuthConfig struct {
	JWTSecret string
	SkipPaths []string
}

// Auth creates a JWT authentication middleware
func Auth(config AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		for _, skipPath := range config.SkipPaths {
			if strings.HasPrefix(path, skipPath) {
				return c.Next()
			}
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return httputil.Unauthorized(c, "missing authorization header")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return httputil.Unauthorized(c, "invalid authorization header format")
		}

		claims, err := validateToken(parts[1], config.JWTSecret)
		if err != nil {
			return httputil.Error(c, err)
		}

		if claims.TokenType != "access" {
			return httputil.Unauthorized(c, "invalid token type")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// validateToken parses and validates a JWT token
func validateToken(tokenString, secret string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrUnauthorized
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, errors.New(errors.ErrUnauthorized, "invalid token", fiber.StatusUnauthorized)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New(errors.ErrUnauthorized, "invalid token", fiber.StatusUnauthorized)
	}

	return claims, nil
}

// GetUserID extracts the user ID from the Fiber context
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.ErrUnauthorized
	}
	return userID, nil
}
