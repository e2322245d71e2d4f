package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catering-backend/internal/metadata"
	"catering-backend/internal/storage"
)

// newTestApp mounts the table routes with a fixed principal.
func newTestApp(t *testing.T, svc *Service, p *metadata.Principal) (*fiber.App, *storage.LocalStorage) {
	t.Helper()
	files := storage.NewLocalStorage(t.TempDir())
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	RegisterMediaRoutes(app, NewFileHandler(files))
	as := func(c *fiber.Ctx) error {
		if p != nil {
			c.Locals(metadata.PrincipalKey, p)
		}
		return c.Next()
	}
	RegisterTableRoutes(app, NewHandler(svc, files, 1<<20, zap.NewNop()), as)
	return app, files
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHandlerCreateFormEncoded(t *testing.T) {
	svc, _ := newTestService(t)
	fx := newDishFixture(t, svc)
	app, _ := newTestApp(t, svc, manager)

	form := url.Values{}
	form.Set("name", "Borscht")
	form.Set("price", "120.50")
	form.Set("assortment_group", strconv.FormatInt(fx.group, 10))
	form.Set("unit_of_measurement", strconv.FormatInt(fx.unit, 10))
	form.Add("ingredients", strconv.FormatInt(fx.flour, 10))
	form.Add("ingredients", strconv.FormatInt(fx.butter, 10))
	form.Set("_addanother", "Save and add another")

	req := httptest.NewRequest(http.MethodPost, "/table/dish/add/", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, body := doRequest(t, app, req)

	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "/table/dish/add/", resp.Header.Get(fiber.HeaderLocation))
	assert.Equal(t, "add_another", body["outcome"])

	data := body["data"].(map[string]any)
	id := int64(data["id"].(float64))
	assert.ElementsMatch(t, []int64{fx.flour, fx.butter}, dishIngredients(t, svc, id))
	assert.Equal(t, 1, countRows(t, svc, "core_dish"))
}

func TestHandlerCreateErrors(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		p      *metadata.Principal
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown entity", manager, "/table/spaceship/add/", `{"name":"x"}`, 404, "UNKNOWN_ENTITY"},
		{"anonymous", nil, "/table/country/add/", `{"name":"x"}`, 401, "UNAUTHORIZED"},
		{"forbidden", chef, "/table/dish/add/", `{"name":"x"}`, 403, "FORBIDDEN"},
		{"broken json", director, "/table/country/add/", `{"name":`, 400, "INVALID_PAYLOAD"},
		{"validation", director, "/table/country/add/", `{"name":""}`, 422, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t, svc, tt.p)
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			resp, body := doRequest(t, app, req)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(body))
		})
	}
}

func TestHandlerListAndForms(t *testing.T) {
	svc, _ := newTestService(t)
	id := mustCreate(t, svc, "country", map[string]any{"name": "Russia"})
	app, _ := newTestApp(t, svc, director)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/table/country/?per_page=20&search=rus", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := body["page"].(map[string]any)
	assert.Equal(t, float64(20), page["per_page"])
	assert.Equal(t, float64(1), page["total"])

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/table/country/add/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "add", body["action"])

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/table/country/edit/"+strconv.FormatInt(id, 10)+"/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Russia", body["record"].(map[string]any)["display"])

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/table/country/edit/abc/", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/table/country/delete/"+strconv.FormatInt(id, 10)+"/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/table/country/", body["cancel"])
}

func TestHandlerUpdateJSON(t *testing.T) {
	svc, log := newTestService(t)
	fx := newDishFixture(t, svc)
	id := mustCreate(t, svc, "dish", fx.dish("Borscht", fx.flour))
	app, _ := newTestApp(t, svc, manager)

	payload := `{"price":"99.90","ingredients":[` + strconv.FormatInt(fx.butter, 10) + `]}`
	req := httptest.NewRequest(http.MethodPut, "/table/dish/edit/"+strconv.FormatInt(id, 10)+"/", strings.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, body := doRequest(t, app, req)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "/table/dish/", resp.Header.Get(fiber.HeaderLocation))
	values := body["data"].(map[string]any)["values"].(map[string]any)
	assert.Equal(t, "99.90", values["price"])
	assert.Equal(t, "Borscht", values["name"])
	assert.Equal(t, []int64{fx.butter}, dishIngredients(t, svc, id))

	changes := log.all()
	last := changes[len(changes)-1]
	assert.Equal(t, "changed price, ingredients", last.Detail)
}

func TestHandlerDelete(t *testing.T) {
	svc, _ := newTestService(t)
	id := mustCreate(t, svc, "country", map[string]any{"name": "Russia"})
	app, _ := newTestApp(t, svc, director)

	path := "/table/country/delete/" + strconv.FormatInt(id, 10) + "/"
	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, path, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "/table/country/", resp.Header.Get(fiber.HeaderLocation))
	assert.Equal(t, 0, countRows(t, svc, "core_country"))

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestHandlerImageUpload(t *testing.T) {
	svc, _ := newTestService(t)
	fx := newDishFixture(t, svc)
	app, files := newTestApp(t, svc, manager)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Borscht"))
	require.NoError(t, w.WriteField("assortment_group", strconv.FormatInt(fx.group, 10)))
	require.NoError(t, w.WriteField("unit_of_measurement", strconv.FormatInt(fx.unit, 10)))
	part, err := w.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a png"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/table/dish/add/", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	resp, body := doRequest(t, app, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	key := body["data"].(map[string]any)["values"].(map[string]any)["image"].(string)
	assert.True(t, strings.HasPrefix(key, "dish/"), key)
	assert.True(t, strings.HasSuffix(key, "/photo.png"), key)

	rc, err := files.Open(req.Context(), key)
	require.NoError(t, err)
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "not really a png", string(stored))

	mediaResp, err := app.Test(httptest.NewRequest(http.MethodGet, MediaURL(key), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, mediaResp.StatusCode)
	assert.Equal(t, "image/png", mediaResp.Header.Get(fiber.HeaderContentType))

	mediaResp, err = app.Test(httptest.NewRequest(http.MethodGet, MediaURL("dish/missing.png"), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, mediaResp.StatusCode)
}

// multipartBody writes fields plus an image part named filename.
func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandlerUpdateRemovesReplacedImage(t *testing.T) {
	svc, _ := newTestService(t)
	fx := newDishFixture(t, svc)
	app, files := newTestApp(t, svc, manager)
	ctx := context.Background()

	imageKey := func(body map[string]any) string {
		return body["data"].(map[string]any)["values"].(map[string]any)["image"].(string)
	}
	stored := func(key string) bool {
		rc, err := files.Open(ctx, key)
		if err != nil {
			return false
		}
		rc.Close()
		return true
	}

	buf, ct := multipartBody(t, map[string]string{
		"name":                "Borscht",
		"assortment_group":    strconv.FormatInt(fx.group, 10),
		"unit_of_measurement": strconv.FormatInt(fx.unit, 10),
	}, "first.png", "one")
	req := httptest.NewRequest(http.MethodPost, "/table/dish/add/", buf)
	req.Header.Set(fiber.HeaderContentType, ct)
	resp, body := doRequest(t, app, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	first := imageKey(body)
	id := int64(body["data"].(map[string]any)["id"].(float64))
	editPath := EditPath("dish", id)

	// A rejected update keeps the stored image and drops the new upload.
	buf, ct = multipartBody(t, map[string]string{"price": "-1"}, "rejected.png", "nope")
	req = httptest.NewRequest(http.MethodPost, editPath, buf)
	req.Header.Set(fiber.HeaderContentType, ct)
	resp, body = doRequest(t, app, req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)
	assert.True(t, stored(first))

	buf, ct = multipartBody(t, nil, "second.png", "two")
	req = httptest.NewRequest(http.MethodPost, editPath, buf)
	req.Header.Set(fiber.HeaderContentType, ct)
	resp, body = doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	second := imageKey(body)

	assert.NotEqual(t, first, second)
	assert.False(t, stored(first), "replaced image is removed")
	assert.True(t, stored(second))

	// An update that leaves the image alone keeps the file.
	req = httptest.NewRequest(http.MethodPut, editPath, strings.NewReader(`{"price":"99.00"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, body = doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, second, imageKey(body))
	assert.True(t, stored(second))
}

func TestHandlerRejectsNonImageUpload(t *testing.T) {
	svc, _ := newTestService(t)
	fx := newDishFixture(t, svc)
	app, _ := newTestApp(t, svc, manager)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Borscht"))
	require.NoError(t, w.WriteField("assortment_group", strconv.FormatInt(fx.group, 10)))
	require.NoError(t, w.WriteField("unit_of_measurement", strconv.FormatInt(fx.unit, 10)))
	part, err := w.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/table/dish/add/", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	assert.Equal(t, 0, countRows(t, svc, "core_dish"))
}

func TestWantsAddAnother(t *testing.T) {
	assert.True(t, wantsAddAnother(map[string]any{"_addanother": ""}))
	assert.True(t, wantsAddAnother(map[string]any{"save_and_add_another": true}))
	assert.True(t, wantsAddAnother(map[string]any{"action": "save_and_add_another"}))
	assert.False(t, wantsAddAnother(map[string]any{"action": "save"}))
	assert.False(t, wantsAddAnother(map[string]any{}))
}
