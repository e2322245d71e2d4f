package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"catering-backend/internal/metadata"
)

// PostgresDialect implements Dialect for PostgreSQL via the pgx stdlib driver.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &paramBuilder{format: d.Placeholder}
}

func (d *PostgresDialect) ColumnType(f *metadata.Field) string {
	return ddlType(f)
}

func (d *PostgresDialect) PrimaryKeyDef(column string) string {
	return column + " BIGSERIAL PRIMARY KEY"
}

func (d *PostgresDialect) TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1 AND table_schema = current_schema())`,
		tableName,
	).Scan(&exists)
	return exists, err
}

func (d *PostgresDialect) InExpr(field string, pb ParamBuilder, values []any) string {
	return inExpr(field, pb, values)
}

func (d *PostgresDialect) MonthExpr(column string) string {
	return fmt.Sprintf("to_char(%s, 'YYYY-MM')", column)
}

func (d *PostgresDialect) DaysAgoExpr(days int) string {
	return fmt.Sprintf("CURRENT_DATE - %d", days)
}

func (d *PostgresDialect) ReadOnlyQueries() bool { return true }

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
		case "23503":
			return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
		}
	}
	return err
}
