package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catering-backend/internal/audit"
	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

func newAdminApp(t *testing.T) (*fiber.App, *audit.DBRecorder) {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	reg := metadata.NewRegistry()
	require.NoError(t, metadata.LoadCatalog(reg))
	actions := audit.NewDBRecorder(s, zap.NewNop())

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(zap.NewNop())})
	RegisterAdminRoutes(app, NewHandler(s, reg, store.NewMigrator(s), actions))
	return app, actions
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSchemaEndpoints(t *testing.T) {
	app, _ := newAdminApp(t)

	status, body := call(t, app, http.MethodGet, "/admin/entities", "")
	require.Equal(t, http.StatusOK, status)
	entities := body["data"].([]any)
	assert.Equal(t, "assortmentgroup", entities[0].(map[string]any)["name"])

	status, body = call(t, app, http.MethodGet, "/admin/entities/dish", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "core_dish", data["table"])
	assert.Len(t, data["relations"], 2) // ingredients and reportdish_set

	status, body = call(t, app, http.MethodGet, "/admin/entities/abbreviationtype", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "UNKNOWN_ENTITY", body["error"].(map[string]any)["code"])

	status, body = call(t, app, http.MethodGet, "/admin/relations", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["data"])

	status, _ = call(t, app, http.MethodPost, "/admin/migrate", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestUserEndpoints(t *testing.T) {
	app, _ := newAdminApp(t)

	status, body := call(t, app, http.MethodPost, "/admin/users", `{"username":"chef","password":"longenough","role":"chef"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "chef", body["data"].(map[string]any)["role"])
	assert.NotContains(t, body["data"], "password_hash")

	status, body = call(t, app, http.MethodPost, "/admin/users", `{"username":"chef","password":"longenough","role":"chef"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["error"].(map[string]any)["code"])

	status, body = call(t, app, http.MethodPost, "/admin/users", `{"username":" ","password":"short","role":"waiter"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	details := body["error"].(map[string]any)["details"].([]any)
	assert.Len(t, details, 3)

	status, body = call(t, app, http.MethodGet, "/admin/users", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestListActions(t *testing.T) {
	app, actions := newAdminApp(t)

	status, body := call(t, app, http.MethodGet, "/admin/actions", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["data"])

	for _, id := range []string{"1", "2", "3"} {
		actions.RecordChanged(context.Background(), audit.Change{Action: audit.ActionCreate, Entity: "dish", RecordID: id})
	}
	status, body = call(t, app, http.MethodGet, "/admin/actions?limit=2", "")
	require.Equal(t, http.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "3", entries[0].(map[string]any)["record_id"])
}
