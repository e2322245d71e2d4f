package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catering-backend/internal/config"
	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

func newTestRuntime(t *testing.T) *runtime {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	reg := metadata.NewRegistry()
	require.NoError(t, metadata.LoadCatalog(reg))
	require.NoError(t, engine.CompileRules(reg))
	require.NoError(t, store.NewMigrator(s).MigrateAll(ctx, reg))

	cfg := &config.Config{
		JWTSecret: "test-secret",
		Storage:   config.StorageConfig{LocalPath: t.TempDir(), MaxFileSize: 1 << 20},
		Report:    config.ReportConfig{MaxColumnWidth: 50},
	}
	return &runtime{cfg: cfg, store: s, registry: reg}
}

func TestNewUser(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		role      string
		superuser bool
		wantErr   bool
	}{
		{"role user", "chef1", "pw", "chef", false, false},
		{"superuser without role", "root", "pw", "", true, false},
		{"missing password", "chef1", "", "chef", false, true},
		{"unknown role", "x", "pw", "cook", false, true},
		{"no role and not superuser", "x", "pw", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := newUser(tt.username, tt.password, tt.role, tt.superuser)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, u.Username)
			assert.NotEqual(t, tt.password, u.PasswordHash)
			assert.True(t, u.Active)
		})
	}
}

func TestSeedUsersIsIdempotent(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	created, err := seedUsers(ctx, rt.store, "test123")
	require.NoError(t, err)
	assert.Equal(t, []string{"director", "manager", "chef", "hr_manager"}, created)

	created, err = seedUsers(ctx, rt.store, "test123")
	require.NoError(t, err)
	assert.Empty(t, created)

	count, err := rt.store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestAppLoginAndLanding(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := seedUsers(context.Background(), rt.store, "test123")
	require.NoError(t, err)

	app := newApp(rt, zap.NewNop())

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/tables/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"username":"chef","password":"test123"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Data.AccessToken)

	req = httptest.NewRequest("GET", "/tables/", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var landing struct {
		Data []engine.TableSummary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&landing))
	names := make([]string, 0, len(landing.Data))
	for _, tbl := range landing.Data {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"dish", "product", "ingredient", "assortmentgroup", "unitofmeasurement", "country", "city", "street"}, names)

	req = httptest.NewRequest("GET", "/admin/entities", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}
