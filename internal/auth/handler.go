package auth

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret}
}

type loginResponse struct {
	AccessToken string                 `json:"access_token,omitempty"`
	Principal   *metadata.Principal    `json:"user"`
	Tables      []engine.VisibleEntity `json:"tables"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayloadError("Invalid request body")
	}
	if body.Username == "" || body.Password == "" {
		return engine.UnauthorizedError("Username and password are required")
	}

	user, err := h.store.FindUserByUsername(c.Context(), body.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.UnauthorizedError("Invalid username or password")
		}
		return err
	}
	if !user.Active {
		return engine.UnauthorizedError("Account is disabled")
	}
	if !CheckPassword(body.Password, user.PasswordHash) {
		return engine.UnauthorizedError("Invalid username or password")
	}

	p := PrincipalFromUser(user.ID, user.Username, user.Role, user.Superuser)
	token, err := GenerateAccessToken(p, h.jwtSecret)
	if err != nil {
		return fmt.Errorf("login %s: %w", user.Username, err)
	}
	return c.JSON(fiber.Map{"data": loginResponse{AccessToken: token, Principal: p}})
}

// Me handles GET /auth/me. It returns the principal and, through the
// registry, the tables the principal may open.
func (h *AuthHandler) Me(reg *metadata.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := GetPrincipal(c)
		if p == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		return c.JSON(fiber.Map{"data": loginResponse{
			Principal: p,
			Tables:    engine.VisibleEntities(p, reg),
		}})
	}
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app fiber.Router, h *AuthHandler, reg *metadata.Registry) {
	auth := app.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Get("/me", AuthMiddleware(h.jwtSecret), h.Me(reg))
}
