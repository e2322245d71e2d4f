package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
)

// AuthMiddleware returns a Fiber middleware that validates JWT tokens
// and sets the Principal on the request.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		c.Locals(metadata.PrincipalKey, claims.Principal())
		return c.Next()
	}
}

// RequireSuperuser rejects every principal that is not a superuser.
func RequireSuperuser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := GetPrincipal(c)
		if p == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !p.Superuser {
			return engine.ForbiddenError("Superuser access required")
		}
		return c.Next()
	}
}

// GetPrincipal extracts the Principal from a Fiber context.
func GetPrincipal(c *fiber.Ctx) *metadata.Principal {
	p, _ := c.Locals(metadata.PrincipalKey).(*metadata.Principal)
	return p
}
