package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"catering-backend/internal/metadata"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return fmt.Sprintf("?%d", index)
}

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &paramBuilder{format: d.Placeholder}
}

func (d *SQLiteDialect) ColumnType(f *metadata.Field) string {
	if f.Kind == metadata.KindReference {
		return "INTEGER"
	}
	return ddlType(f)
}

func (d *SQLiteDialect) PrimaryKeyDef(column string) string {
	return column + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d *SQLiteDialect) TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?1",
		tableName,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *SQLiteDialect) InExpr(field string, pb ParamBuilder, values []any) string {
	return inExpr(field, pb, values)
}

func (d *SQLiteDialect) MonthExpr(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
}

func (d *SQLiteDialect) DaysAgoExpr(days int) string {
	return fmt.Sprintf("date('now', '-%d days')", days)
}

// ReadOnlyQueries is false: SQLite has no READ ONLY transaction mode.
func (d *SQLiteDialect) ReadOnlyQueries() bool { return false }

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	}
	return err
}
