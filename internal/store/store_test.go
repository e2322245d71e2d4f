package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catering-backend/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := NewMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))
	return s
}

func newTestRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry()
	require.NoError(t, metadata.LoadCatalog(reg))
	return reg
}

func TestMigrateAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	reg := newTestRegistry(t)
	m := NewMigrator(s)

	require.NoError(t, m.MigrateAll(ctx, reg))
	// A second run finds every table and does nothing.
	require.NoError(t, m.MigrateAll(ctx, reg))

	for _, e := range reg.ListEntities() {
		exists, err := s.Dialect.TableExists(ctx, s.DB, e.Table)
		require.NoError(t, err)
		assert.True(t, exists, e.Table)
	}
	exists, err := s.Dialect.TableExists(ctx, s.DB, "core_dish_ingredients")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Dialect.TableExists(ctx, s.DB, "core_spaceship")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMigratedConstraints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, NewMigrator(s).MigrateAll(ctx, newTestRegistry(t)))

	groupID, err := InsertReturningID(ctx, s.DB, "INSERT INTO core_assortmentgroup (name) VALUES (?1) RETURNING id", "Soups")
	require.NoError(t, err)
	unitID, err := InsertReturningID(ctx, s.DB, "INSERT INTO core_unitofmeasurement (name) VALUES (?1) RETURNING id", "g")
	require.NoError(t, err)

	// Defaults fill price, output and description.
	dishID, err := InsertReturningID(ctx, s.DB,
		"INSERT INTO core_dish (name, assortment_group_id, unit_of_measurement_id) VALUES (?1, ?2, ?3) RETURNING id",
		"Borscht", groupID, unitID)
	require.NoError(t, err)
	row, err := QueryRow(ctx, s.DB, "SELECT description FROM core_dish WHERE id = ?1", dishID)
	require.NoError(t, err)
	assert.Equal(t, "", row["description"])

	_, err = s.DB.ExecContext(ctx,
		"INSERT INTO core_dish (name, assortment_group_id, unit_of_measurement_id) VALUES (?1, ?2, ?3)",
		"Ghost", 999, unitID)
	assert.True(t, errors.Is(s.Dialect.MapError(err), ErrForeignKeyViolation), "got %v", err)

	ingID, err := InsertReturningID(ctx, s.DB,
		"INSERT INTO core_ingredient (name, gross_weight, net_weight) VALUES (?1, 1, 1) RETURNING id", "Beet")
	require.NoError(t, err)
	_, err = s.DB.ExecContext(ctx, "INSERT INTO core_dish_ingredients (dish_id, ingredient_id) VALUES (?1, ?2)", dishID, ingID)
	require.NoError(t, err)
	_, err = s.DB.ExecContext(ctx, "INSERT INTO core_dish_ingredients (dish_id, ingredient_id) VALUES (?1, ?2)", dishID, ingID)
	assert.True(t, errors.Is(s.Dialect.MapError(err), ErrUniqueViolation), "got %v", err)

	// Deleting the group cascades through the dish into the join table.
	n, err := Exec(ctx, s.DB, "DELETE FROM core_assortmentgroup WHERE id = ?1", groupID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	var left int
	require.NoError(t, s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM core_dish_ingredients").Scan(&left))
	assert.Zero(t, left)
}

func TestQueryTableKeepsColumnOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	columns, rows, err := QueryTable(ctx, s.DB, "SELECT 2 AS b, 'x' AS a, NULL AS c")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, columns)
	assert.Equal(t, [][]any{{int64(2), "x", nil}}, rows)

	_, err = QueryRow(ctx, s.DB, "SELECT 1 WHERE 1 = 0")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = QueryTable(ctx, s.DB, "SELECT * FROM nowhere")
	assert.Error(t, err)
}

func TestDefaultLiteral(t *testing.T) {
	assert.Equal(t, "TRUE", defaultLiteral(true))
	assert.Equal(t, "FALSE", defaultLiteral(false))
	assert.Equal(t, "42", defaultLiteral(42))
	assert.Equal(t, "'0'", defaultLiteral("0"))
	assert.Equal(t, "'O''Neil'", defaultLiteral("O'Neil"))
}

func TestColumnTypes(t *testing.T) {
	pg := &PostgresDialect{}
	lite := &SQLiteDialect{}
	tests := []struct {
		name   string
		field  metadata.Field
		pg     string
		sqlite string
	}{
		{"varchar", metadata.Field{Type: "VARCHAR(25)"}, "VARCHAR(25)", "VARCHAR(25)"},
		{"text", metadata.Field{Type: "TEXT"}, "TEXT", "TEXT"},
		{"decimal", metadata.Field{Type: "NUMERIC(10,3)"}, "NUMERIC(10,3)", "NUMERIC(10,3)"},
		{"date", metadata.Field{Type: "DATE"}, "DATE", "DATE"},
		{"image", metadata.Field{Type: "IMAGE"}, "VARCHAR(255)", "VARCHAR(255)"},
		{"reference", metadata.Field{Type: "BIGINT", References: "bank"}, "BIGINT", "INTEGER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.field
			f.Classify()
			assert.Equal(t, tt.pg, pg.ColumnType(&f))
			assert.Equal(t, tt.sqlite, lite.ColumnType(&f))
		})
	}
}

func TestDialects(t *testing.T) {
	assert.IsType(t, &SQLiteDialect{}, NewDialect("sqlite"))
	assert.IsType(t, &PostgresDialect{}, NewDialect("postgres"))
	assert.IsType(t, &PostgresDialect{}, NewDialect(""))

	pb := (&PostgresDialect{}).NewParamBuilder()
	assert.Equal(t, "id IN ($1, $2)", (&PostgresDialect{}).InExpr("id", pb, []any{1, 2}))
	assert.Equal(t, 2, pb.Count())
	assert.Equal(t, "1=0", (&SQLiteDialect{}).InExpr("id", (&SQLiteDialect{}).NewParamBuilder(), nil))
	assert.Equal(t, "?3", (&SQLiteDialect{}).Placeholder(3))

	assert.True(t, (&PostgresDialect{}).ReadOnlyQueries())
	assert.False(t, (&SQLiteDialect{}).ReadOnlyQueries())
}

func TestMapError(t *testing.T) {
	pg := &PostgresDialect{}
	assert.ErrorIs(t, pg.MapError(&pgconn.PgError{Code: "23505"}), ErrUniqueViolation)
	assert.ErrorIs(t, pg.MapError(&pgconn.PgError{Code: "23503"}), ErrForeignKeyViolation)
	plain := errors.New("boom")
	assert.Equal(t, plain, pg.MapError(plain))
	assert.NoError(t, MapError(pg, nil))

	lite := &SQLiteDialect{}
	assert.ErrorIs(t, lite.MapError(errors.New("constraint failed: UNIQUE constraint failed: auth_user.username")), ErrUniqueViolation)
	assert.ErrorIs(t, lite.MapError(errors.New("FOREIGN KEY constraint failed")), ErrForeignKeyViolation)
	assert.Equal(t, plain, lite.MapError(plain))
}
