package admin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"catering-backend/internal/audit"
	"catering-backend/internal/auth"
	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// Handler serves the superuser-only administration endpoints: schema
// introspection, user management, the action log and migrations.
type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	migrator *store.Migrator
	actions  *audit.DBRecorder
}

func NewHandler(s *store.Store, reg *metadata.Registry, mig *store.Migrator, actions *audit.DBRecorder) *Handler {
	return &Handler{store: s, registry: reg, migrator: mig, actions: actions}
}

func RegisterAdminRoutes(app fiber.Router, h *Handler, mw ...fiber.Handler) {
	admin := app.Group("/admin", mw...)

	admin.Get("/entities", h.ListEntities)
	admin.Get("/entities/:name", h.GetEntity)
	admin.Get("/relations", h.ListRelations)
	admin.Post("/migrate", h.Migrate)

	admin.Get("/users", h.ListUsers)
	admin.Post("/users", h.CreateUser)

	admin.Get("/actions", h.ListActions)
}

// --- Schema Endpoints ---

func (h *Handler) ListEntities(c *fiber.Ctx) error {
	entities := h.registry.ListEntities()
	out := make([]*metadata.EntityDescriptor, 0, len(entities))
	for _, e := range entities {
		desc, err := h.registry.Describe(e.Name)
		if err != nil {
			return fmt.Errorf("describe %s: %w", e.Name, err)
		}
		out = append(out, desc)
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handler) GetEntity(c *fiber.Ctx) error {
	name := c.Params("name")
	desc, err := h.registry.Describe(name)
	if err != nil {
		return engine.UnknownEntityError(name)
	}
	entity := h.registry.GetEntity(name)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"descriptor": desc,
		"table":      entity.Table,
		"relations":  h.registry.GetRelationsForSource(name),
	}})
}

func (h *Handler) ListRelations(c *fiber.Ctx) error {
	var out []*metadata.Relation
	for _, e := range h.registry.ListEntities() {
		out = append(out, h.registry.GetRelationsForSource(e.Name)...)
	}
	if out == nil {
		out = []*metadata.Relation{}
	}
	return c.JSON(fiber.Map{"data": out})
}

// Migrate creates any missing tables and join tables.
func (h *Handler) Migrate(c *fiber.Ctx) error {
	if err := h.migrator.MigrateAll(c.Context(), h.registry); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return c.JSON(fiber.Map{"message": "Migrations applied"})
}

// --- User Endpoints ---

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.store.ListUsers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": users})
}

type createUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Superuser bool   `json:"superuser"`
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var body createUserRequest
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayloadError("Invalid JSON body")
	}

	var details []engine.ErrorDetail
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" {
		details = append(details, engine.ErrorDetail{Field: "username", Rule: "required", Message: "This field is required."})
	}
	if len(body.Password) < 8 {
		details = append(details, engine.ErrorDetail{Field: "password", Rule: "min_length", Message: "Password must be at least 8 characters."})
	}
	if _, ok := metadata.ParseRole(body.Role); !ok {
		details = append(details, engine.ErrorDetail{Field: "role", Rule: "choice", Message: fmt.Sprintf("Unknown role: %s", body.Role)})
	}
	if len(details) > 0 {
		return engine.ValidationError(details)
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		return err
	}
	user := &store.User{
		Username:     body.Username,
		PasswordHash: hash,
		Role:         body.Role,
		Superuser:    body.Superuser,
		Active:       true,
	}
	if _, err := h.store.CreateUser(c.Context(), user); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return engine.ConflictError("A user with that username already exists")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": user})
}

// --- Action Log ---

func (h *Handler) ListActions(c *fiber.Ctx) error {
	entries, err := h.actions.Recent(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return c.JSON(fiber.Map{"data": entries})
}
