package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catering-backend/internal/audit"
	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

var (
	director  = &metadata.Principal{ID: "1", Username: "director", Role: metadata.RoleDirector}
	manager   = &metadata.Principal{ID: "2", Username: "manager", Role: metadata.RoleManager}
	chef      = &metadata.Principal{ID: "3", Username: "chef", Role: metadata.RoleChef}
	hrManager = &metadata.Principal{ID: "4", Username: "hr_manager", Role: metadata.RoleHRManager}
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 30, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		start, end string
		want       DateRange
	}{
		{"defaults", "", "", DateRange{Start: day(2024, 4, 20), End: day(2024, 5, 20)}},
		{"explicit", "2024-01-01", "2024-01-31", DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 31)}},
		{"malformed start", "01.01.2024", "2024-05-01", DateRange{Start: day(2024, 4, 20), End: day(2024, 5, 1)}},
		{"reversed", "2024-03-01", "2024-02-01", DateRange{Start: day(2024, 2, 1), End: day(2024, 3, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDateRange(tt.start, tt.end, now))
		})
	}
}

func TestFindChart(t *testing.T) {
	require.NotNil(t, FindChart("top-dishes"))
	assert.Equal(t, "bar", FindChart("top-dishes").Type)
	assert.Nil(t, FindChart("nope"))

	seen := make(map[string]bool)
	for _, c := range Charts {
		assert.False(t, seen[c.ID], "duplicate chart %s", c.ID)
		seen[c.ID] = true
		assert.NotEmpty(t, c.Requires, c.ID)
	}
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(manager, FindChart("top-dishes")))
	assert.False(t, Allowed(chef, FindChart("top-dishes")))
	assert.True(t, Allowed(chef, FindChart("avg-dish-price")))
	assert.True(t, Allowed(hrManager, FindChart("employees-by-position")))
	assert.False(t, Allowed(hrManager, FindChart("low-stock")))
	for _, c := range Charts {
		assert.True(t, Allowed(director, &c), c.ID)
	}
}

// newTestData returns a service over a database holding two dishes sold
// on 2024-04-15 and one sold on 2024-06-01.
func newTestData(t *testing.T) *Service {
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

	svc := engine.NewService(s, reg, audit.Nop{}, zap.NewNop())
	create := func(entity string, body map[string]any) int64 {
		e := reg.GetEntity(entity)
		res, err := svc.Create(ctx, entity, engine.NewMutationInput(reg, e, body), director)
		require.NoError(t, err)
		return res.Record.ID
	}

	soups := create("assortmentgroup", map[string]any{"name": "Soups"})
	unit := create("unitofmeasurement", map[string]any{"name": "portion"})
	borscht := create("dish", map[string]any{"name": "Borscht", "price": "100.00", "assortment_group": soups, "unit_of_measurement": unit})
	shchi := create("dish", map[string]any{"name": "Shchi", "price": "80.00", "assortment_group": soups, "unit_of_measurement": unit})

	april := create("report", map[string]any{"date": "2024-04-15"})
	june := create("report", map[string]any{"date": "2024-06-01"})
	create("reportdish", map[string]any{"report": april, "dish": borscht, "quantity": "3"})
	create("reportdish", map[string]any{"report": april, "dish": shchi, "quantity": "5"})
	create("reportdish", map[string]any{"report": june, "dish": borscht, "quantity": "10"})

	return NewService(s, zap.NewNop())
}

func TestComputeTopDishes(t *testing.T) {
	svc := newTestData(t)
	ctx := context.Background()

	april := ParseDateRange("2024-04-01", "2024-04-30", time.Now())
	series, err := svc.Compute(ctx, "top-dishes", manager, april)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shchi", "Borscht"}, series.Labels)
	assert.Equal(t, []float64{5, 3}, series.Values)
	assert.Equal(t, "2024-04-01", series.Start)
	assert.Equal(t, "2024-04-30", series.End)

	whole := ParseDateRange("2024-01-01", "2024-12-31", time.Now())
	series, err = svc.Compute(ctx, "top-dishes", manager, whole)
	require.NoError(t, err)
	assert.Equal(t, []string{"Borscht", "Shchi"}, series.Labels)
	assert.Equal(t, []float64{13, 5}, series.Values)

	series, err = svc.Compute(ctx, "revenue-by-group", manager, april)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soups"}, series.Labels)
	assert.InDelta(t, 700, series.Values[0], 0.001)
}

func TestComputeErrors(t *testing.T) {
	svc := newTestData(t)
	ctx := context.Background()
	r := ParseDateRange("", "", time.Now())

	_, err := svc.Compute(ctx, "nope", manager, r)
	assert.True(t, engine.IsCode(err, "NOT_FOUND"))
	_, err = svc.Compute(ctx, "top-dishes", nil, r)
	assert.True(t, engine.IsCode(err, "UNAUTHORIZED"))
	_, err = svc.Compute(ctx, "top-dishes", chef, r)
	assert.True(t, engine.IsCode(err, "FORBIDDEN"))
}

func TestDashboard(t *testing.T) {
	svc := newTestData(t)
	ctx := context.Background()
	r := ParseDateRange("2024-04-01", "2024-04-30", time.Now())

	charts, err := svc.Dashboard(ctx, chef, r)
	require.NoError(t, err)
	var ids []string
	for _, c := range charts {
		ids = append(ids, c.Chart)
	}
	// Empty charts are left out; the chef cannot see sales.
	assert.Equal(t, []string{"avg-dish-price"}, ids)

	charts, err = svc.Dashboard(ctx, hrManager, r)
	require.NoError(t, err)
	assert.Empty(t, charts)

	_, err = svc.Dashboard(ctx, nil, r)
	assert.True(t, engine.IsCode(err, "UNAUTHORIZED"))
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, float64(3), toFloat(int64(3)))
	assert.Equal(t, 2.5, toFloat(2.5))
	assert.Equal(t, 12.345, toFloat("12.345"))
	assert.Equal(t, float64(0), toFloat("abc"))
	assert.Equal(t, float64(0), toFloat(nil))
}
