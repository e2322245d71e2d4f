package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"catering-backend/internal/audit"
	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

const maxLoggedQuery = 500

type Handler struct {
	registry       *metadata.Registry
	dialect        store.Dialect
	gate           *Gate
	executor       *Executor
	audit          audit.Recorder
	logger         *zap.Logger
	maxColumnWidth int
}

func NewHandler(s *store.Store, reg *metadata.Registry, rec audit.Recorder, logger *zap.Logger, maxColumnWidth int) *Handler {
	if rec == nil {
		rec = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:       reg,
		dialect:        s.Dialect,
		gate:           NewGate(reg),
		executor:       NewExecutor(s),
		audit:          rec,
		logger:         logger,
		maxColumnWidth: maxColumnWidth,
	}
}

func RegisterRoutes(app fiber.Router, h *Handler, mw ...fiber.Handler) {
	g := app.Group("/sql-query", mw...)
	g.Get("/", h.Page)
	g.Post("/", h.Run)
}

// Page handles GET /sql-query/ with the caller's tables and templates.
func (h *Handler) Page(c *fiber.Ctx) error {
	p := principal(c)
	if p == nil {
		return engine.UnauthorizedError("Authentication required")
	}
	tables := AllowedTables(p, h.registry)
	if tables == nil {
		tables = []AllowedTable{}
	}
	templates := Templates(p, h.dialect)
	if templates == nil {
		templates = []Template{}
	}
	return c.JSON(fiber.Map{"tables": tables, "templates": templates})
}

type runRequest struct {
	Query  string `json:"sql_query" form:"sql_query"`
	Export string `json:"-" form:"export"`
}

// Run handles POST /sql-query/. With an export flag the result set is
// streamed as an XLSX download instead of JSON.
func (h *Handler) Run(c *fiber.Ctx) error {
	p := principal(c)
	if p == nil {
		return engine.UnauthorizedError("Authentication required")
	}

	query, export, err := parseRun(c)
	if err != nil {
		return err
	}
	log := h.logger.With(zap.String("user", p.Username), zap.String("query", truncate(query, maxLoggedQuery)))

	normalized, err := h.gate.Check(p, query)
	if err != nil {
		var appErr *engine.AppError
		if errors.As(err, &appErr) {
			log.Info("report query rejected", zap.String("reason", appErr.Message))
		}
		return err
	}

	rs, err := h.executor.Run(c.Context(), normalized)
	if err != nil {
		log.Warn("report query failed", zap.Error(err))
		return err
	}
	log.Info("report query accepted", zap.Int("rows", len(rs.Rows)), zap.Bool("export", export))

	if !export {
		return c.JSON(fiber.Map{"columns": rs.Columns, "rows": rs.Rows, "row_count": len(rs.Rows), "query": normalized})
	}

	buf, err := ExportXLSX(rs, h.maxColumnWidth)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	filename := ExportFilename(p.Username, p.ID)
	h.audit.RecordChanged(c.Context(), audit.Change{
		Principal: p,
		Action:    audit.ActionExport,
		Entity:    "sql_query",
		Display:   filename,
		Detail:    truncate(normalized, maxLoggedQuery),
	})

	c.Set(fiber.HeaderContentType, XLSXContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	return c.Send(buf.Bytes())
}

func parseRun(c *fiber.Ctx) (string, bool, error) {
	ct := strings.ToLower(string(c.Request().Header.ContentType()))
	if strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
		var body struct {
			Query  string `json:"sql_query"`
			Export any    `json:"export"`
		}
		if err := c.BodyParser(&body); err != nil {
			return "", false, engine.InvalidPayloadError("Invalid JSON body")
		}
		return body.Query, flag(body.Export), nil
	}
	var body runRequest
	if err := c.BodyParser(&body); err != nil {
		return "", false, engine.InvalidPayloadError("Invalid form body")
	}
	export := body.Export != "" || c.Request().PostArgs().Has("export") || c.Query("export") != ""
	return body.Query, export, nil
}

// flag treats any present, non-false value as set.
func flag(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		return s != "" && s != "0" && s != "false"
	case float64:
		return b != 0
	}
	return true
}

func principal(c *fiber.Ctx) *metadata.Principal {
	p, _ := c.Locals(metadata.PrincipalKey).(*metadata.Principal)
	return p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
