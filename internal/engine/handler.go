package engine

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"catering-backend/internal/metadata"
	"catering-backend/internal/storage"
)

type Handler struct {
	service     *Service
	files       storage.FileStorage
	maxFileSize int64
	logger      *zap.Logger
}

func NewHandler(svc *Service, files storage.FileStorage, maxFileSize int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: svc, files: files, maxFileSize: maxFileSize, logger: logger}
}

// Tables handles GET /tables/
func (h *Handler) Tables(c *fiber.Ctx) error {
	tables, err := h.service.Tables(c.Context(), getPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tables})
}

// List handles GET /table/:entity/
func (h *Handler) List(c *fiber.Ctx) error {
	name := c.Params("entity")
	result, err := h.service.ListRecords(c.Context(), name, ParseTableQuery(c, name), getPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// AddForm handles GET /table/:entity/add/
func (h *Handler) AddForm(c *fiber.Ctx) error {
	form, err := h.service.Form(c.Context(), c.Params("entity"), nil, getPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(form)
}

// Create handles POST /table/:entity/add/
func (h *Handler) Create(c *fiber.Ctx) error {
	name := c.Params("entity")
	p := getPrincipal(c)
	entity, _, err := h.service.resolveEntity(name)
	if err != nil {
		return err
	}
	if err := CheckPermission(p, entity.Name, metadata.ActionAdd); err != nil {
		return err
	}

	in, uploaded, err := h.readInput(c, entity)
	if err != nil {
		return err
	}
	result, err := h.service.Create(c.Context(), name, in, p)
	if err != nil {
		h.discard(c, uploaded)
		return err
	}
	c.Set(fiber.HeaderLocation, result.Redirect)
	return c.Status(fiber.StatusCreated).JSON(result)
}

// EditForm handles GET /table/:entity/edit/:id/
func (h *Handler) EditForm(c *fiber.Ctx) error {
	name := c.Params("entity")
	id, err := parseID(c, name)
	if err != nil {
		return err
	}
	form, err := h.service.Form(c.Context(), name, &id, getPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(form)
}

// Update handles POST, PUT and PATCH /table/:entity/edit/:id/
func (h *Handler) Update(c *fiber.Ctx) error {
	name := c.Params("entity")
	p := getPrincipal(c)
	entity, _, err := h.service.resolveEntity(name)
	if err != nil {
		return err
	}
	if err := CheckPermission(p, entity.Name, metadata.ActionChange); err != nil {
		return err
	}
	id, err := parseID(c, name)
	if err != nil {
		return err
	}

	in, uploaded, err := h.readInput(c, entity)
	if err != nil {
		return err
	}
	result, err := h.service.Update(c.Context(), name, id, in, p)
	if err != nil {
		h.discard(c, uploaded)
		return err
	}
	h.discard(c, result.Replaced)
	c.Set(fiber.HeaderLocation, result.Redirect)
	return c.JSON(result)
}

// DeleteConfirm handles GET /table/:entity/delete/:id/
func (h *Handler) DeleteConfirm(c *fiber.Ctx) error {
	name := c.Params("entity")
	id, err := parseID(c, name)
	if err != nil {
		return err
	}
	rec, err := h.service.Get(c.Context(), name, id, getPrincipal(c), metadata.ActionDelete)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rec, "cancel": ListPath(name)})
}

// Delete handles POST and DELETE /table/:entity/delete/:id/
func (h *Handler) Delete(c *fiber.Ctx) error {
	name := c.Params("entity")
	id, err := parseID(c, name)
	if err != nil {
		return err
	}
	result, err := h.service.Delete(c.Context(), name, id, getPrincipal(c))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderLocation, result.Redirect)
	return c.JSON(result)
}

func getPrincipal(c *fiber.Ctx) *metadata.Principal {
	p, _ := c.Locals(metadata.PrincipalKey).(*metadata.Principal)
	return p
}

func parseID(c *fiber.Ctx, entity string) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, NotFoundError(entity, raw)
	}
	return id, nil
}

// readInput parses a JSON, urlencoded or multipart body. Image fields in a
// multipart body are stored first and replaced by their storage keys.
func (h *Handler) readInput(c *fiber.Ctx, entity *metadata.Entity) (MutationInput, []string, error) {
	body := make(map[string]any)
	var uploaded []string
	ct := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(ct, fiber.MIMEApplicationJSON):
		if err := c.BodyParser(&body); err != nil {
			return MutationInput{}, nil, InvalidPayloadError("Invalid JSON body")
		}
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return MutationInput{}, nil, InvalidPayloadError("Invalid multipart body")
		}
		for key, values := range form.Value {
			body[key] = formValue(values)
		}
		for i := range entity.Fields {
			f := &entity.Fields[i]
			files := form.File[f.Name]
			if f.Kind != metadata.KindImage || len(files) == 0 {
				continue
			}
			key, err := h.saveImage(c, entity, f, files[0])
			if err != nil {
				h.discard(c, uploaded)
				return MutationInput{}, nil, err
			}
			uploaded = append(uploaded, key)
			body[f.Name] = key
		}
	default:
		values := make(map[string][]string)
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			values[string(k)] = append(values[string(k)], string(v))
		})
		for key, vs := range values {
			body[key] = formValue(vs)
		}
	}

	addAnother := wantsAddAnother(body)
	in := NewMutationInput(h.service.Registry(), entity, body)
	in.SaveAndAddAnother = addAnother
	return in, uploaded, nil
}

func formValue(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// wantsAddAnother recognises the "save and add another" submit button.
func wantsAddAnother(body map[string]any) bool {
	if _, ok := body["_addanother"]; ok {
		return true
	}
	if v, ok := body["save_and_add_another"]; ok && toBool(v) {
		return true
	}
	action, _ := body["action"].(string)
	return action == "save_and_add_another"
}
