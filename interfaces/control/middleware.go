package control

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/foldershare/sharer/pkg/logger"
)

// OperatorClaims is deliberately minimal: this control surface has one
// trust tier (the operator who can launch a run), not a user/role model.
type OperatorClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Protected validates the Bearer token on every request against secret.
// Mirrors the teacher's auth middleware shape, collapsed to a single
// claim type since there is no multi-role model here.
func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return unauthorized(c, "missing authorization header")
		}

		claims := &OperatorClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			logger.Warn(logger.CategoryControl, "auth_rejected", "token validation failed", map[string]interface{}{"error": errString(err)})
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals("operator", claims.Subject)
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
