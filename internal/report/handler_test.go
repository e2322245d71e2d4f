package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"catering-backend/internal/audit"
	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

type exportLog struct {
	mu      sync.Mutex
	changes []audit.Change
}

func (l *exportLog) RecordChanged(_ context.Context, c audit.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func newReportApp(t *testing.T, p *metadata.Principal) (*fiber.App, *exportLog) {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))
	reg := newTestRegistry(t)
	require.NoError(t, store.NewMigrator(s).MigrateAll(ctx, reg))

	for _, name := range []string{"Spain", "Russia"} {
		_, err := s.DB.ExecContext(ctx, "INSERT INTO core_country (name) VALUES (?)", name)
		require.NoError(t, err)
	}

	log := &exportLog{}
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(zap.NewNop())})
	as := func(c *fiber.Ctx) error {
		if p != nil {
			c.Locals(metadata.PrincipalKey, p)
		}
		return c.Next()
	}
	RegisterRoutes(app, NewHandler(s, reg, log, zap.NewNop(), 50), as)
	return app, log
}

func postJSON(t *testing.T, app *fiber.App, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sql-query/", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestReportPage(t *testing.T) {
	app, _ := newReportApp(t, chef)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sql-query/", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tables    []AllowedTable `json:"tables"`
		Templates []Template     `json:"templates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Tables, 9)
	assert.Len(t, body.Templates, 3)
}

func TestReportRunJSON(t *testing.T) {
	app, log := newReportApp(t, chef)

	resp, body := postJSON(t, app, `{"sql_query":"SELECT name FROM core_country ORDER BY name;"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, []any{"name"}, body["columns"])
	assert.Equal(t, []any{[]any{"Russia"}, []any{"Spain"}}, body["rows"])
	assert.Equal(t, float64(2), body["row_count"])
	assert.Equal(t, "SELECT name FROM core_country ORDER BY name", body["query"])
	assert.Empty(t, log.changes)
}

func TestReportRunRejected(t *testing.T) {
	app, _ := newReportApp(t, chef)

	resp, body := postJSON(t, app, `{"sql_query":"SELECT * FROM core_employee"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := body["error"].(map[string]any)
	assert.Equal(t, "QUERY_REJECTED", e["code"])
	assert.Contains(t, e["message"], "core_employee")

	resp, body = postJSON(t, app, `{"sql_query":"SELECT * FROM auth_user"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "QUERY_REJECTED", body["error"].(map[string]any)["code"])
}

func TestReportRunRejectsHiddenTables(t *testing.T) {
	app, _ := newReportApp(t, chef)

	for _, query := range []string{
		`SELECT username, password_hash, '\' FROM auth_user --'`,
		"SELECT * FROM (auth_user)",
		"SELECT * FROM (core_actionlog)",
		"SELECT * FROM (core_employee)",
	} {
		payload, err := json.Marshal(map[string]string{"sql_query": query})
		require.NoError(t, err)
		resp, body := postJSON(t, app, string(payload))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.Equal(t, "QUERY_REJECTED", body["error"].(map[string]any)["code"], query)
		assert.NotContains(t, body, "columns")
	}
}

func TestReportRunExecutionError(t *testing.T) {
	app, _ := newReportApp(t, director)

	resp, body := postJSON(t, app, `{"sql_query":"SELECT * FROM dish"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	e := body["error"].(map[string]any)
	assert.Equal(t, "EXECUTION_ERROR", e["code"])
	assert.Contains(t, e["message"], "dish")
}

func TestReportRunAnonymous(t *testing.T) {
	app, _ := newReportApp(t, nil)
	resp, body := postJSON(t, app, `{"sql_query":"SELECT 1"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])
}

func TestReportExport(t *testing.T) {
	app, log := newReportApp(t, chef)

	form := url.Values{}
	form.Set("sql_query", "SELECT id, name FROM core_country ORDER BY name")
	form.Set("export", "1")
	req := httptest.NewRequest(http.MethodPost, "/sql-query/", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, XLSXContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "attachment; filename=sql_results_chef_3.xlsx", resp.Header.Get(fiber.HeaderContentDisposition))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name"}, rows[0])
	assert.Equal(t, "Russia", rows[1][1])

	require.Len(t, log.changes, 1)
	assert.Equal(t, audit.ActionExport, log.changes[0].Action)
	assert.Equal(t, "sql_results_chef_3.xlsx", log.changes[0].Display)
	assert.Equal(t, chef, log.changes[0].Principal)
}

func TestFlag(t *testing.T) {
	assert.True(t, flag(true))
	assert.True(t, flag("yes"))
	assert.True(t, flag(float64(1)))
	assert.False(t, flag(nil))
	assert.False(t, flag("false"))
	assert.False(t, flag("0"))
	assert.False(t, flag(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "аб...", truncate("абвгд", 2))
}
