package analytics

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"catering-backend/internal/metadata"
)

type Handler struct {
	service *Service
	now     func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc, now: time.Now}
}

func RegisterRoutes(app fiber.Router, h *Handler, mw ...fiber.Handler) {
	g := app.Group("/analytics", mw...)
	g.Get("/", h.Dashboard)
	g.Get("/:chart/", h.Chart)
}

// Dashboard handles GET /analytics/
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	r := ParseDateRange(c.Query("start_date"), c.Query("end_date"), h.now())
	charts, err := h.service.Dashboard(c.Context(), principal(c), r)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"charts":     charts,
		"date_range": fiber.Map{"start": r.StartString(), "end": r.EndString()},
	})
}

// Chart handles GET /analytics/:chart/
func (h *Handler) Chart(c *fiber.Ctx) error {
	r := ParseDateRange(c.Query("start_date"), c.Query("end_date"), h.now())
	series, err := h.service.Compute(c.Context(), c.Params("chart"), principal(c), r)
	if err != nil {
		return err
	}
	return c.JSON(series)
}

func principal(c *fiber.Ctx) *metadata.Principal {
	p, _ := c.Locals(metadata.PrincipalKey).(*metadata.Principal)
	return p
}
