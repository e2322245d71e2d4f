package engine

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

func ListPath(entity string) string { return fmt.Sprintf("/table/%s/", entity) }
func AddPath(entity string) string  { return fmt.Sprintf("/table/%s/add/", entity) }

func EditPath(entity string, id int64) string {
	return fmt.Sprintf("/table/%s/edit/%d/", entity, id)
}

func DeletePath(entity string, id int64) string {
	return fmt.Sprintf("/table/%s/delete/%d/", entity, id)
}

// RegisterTableRoutes mounts the landing page and the generic table routes.
// mw runs before every handler, typically authentication.
func RegisterTableRoutes(app fiber.Router, h *Handler, mw ...fiber.Handler) {
	landing := append(append([]fiber.Handler{}, mw...), h.Tables)
	app.Get("/tables/", landing...)

	table := app.Group("/table/:entity", mw...)
	table.Get("/", h.List)
	table.Get("/add/", h.AddForm)
	table.Post("/add/", h.Create)
	table.Get("/edit/:id/", h.EditForm)
	table.Post("/edit/:id/", h.Update)
	table.Put("/edit/:id/", h.Update)
	table.Patch("/edit/:id/", h.Update)
	table.Get("/delete/:id/", h.DeleteConfirm)
	table.Post("/delete/:id/", h.Delete)
	table.Delete("/delete/:id/", h.Delete)
}
