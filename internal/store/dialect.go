package store

import (
	"context"
	"database/sql"
	"fmt"

	"catering-backend/internal/metadata"
)

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// NewParamBuilder creates a dialect-aware parameter builder.
	NewParamBuilder() ParamBuilder

	// ColumnType maps a classified field to the database DDL type.
	ColumnType(f *metadata.Field) string

	// PrimaryKeyDef returns the DDL of an auto-incrementing integer primary key column.
	PrimaryKeyDef(column string) string

	// TableExists checks whether a table exists.
	TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error)

	// InExpr builds "field IN (...)" expanding the slice into placeholders.
	InExpr(field string, pb ParamBuilder, values []any) string

	// MonthExpr returns SQL rendering a date column as YYYY-MM.
	MonthExpr(column string) string

	// DaysAgoExpr returns SQL for the current date minus days.
	DaysAgoExpr(days int) string

	// ReadOnlyQueries reports whether ad-hoc reads can run in a READ ONLY transaction.
	ReadOnlyQueries() bool

	// MapError inspects a driver error and returns a well-known sentinel error if applicable.
	MapError(err error) error
}

// ParamBuilder accumulates query parameters and generates dialect-specific placeholders.
type ParamBuilder interface {
	// Add appends a value and returns the placeholder string.
	Add(v any) string

	// Params returns all accumulated parameter values.
	Params() []any

	// Count returns the number of parameters added so far.
	Count() int
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}

type paramBuilder struct {
	params []any
	format func(int) string
}

func (p *paramBuilder) Add(v any) string {
	p.params = append(p.params, v)
	return p.format(len(p.params))
}

func (p *paramBuilder) Params() []any { return p.params }
func (p *paramBuilder) Count() int    { return len(p.params) }

func inExpr(field string, pb ParamBuilder, values []any) string {
	if len(values) == 0 {
		return "1=0" // always false
	}
	phs := ""
	for i, v := range values {
		if i > 0 {
			phs += ", "
		}
		phs += pb.Add(v)
	}
	return fmt.Sprintf("%s IN (%s)", field, phs)
}

// ddlType maps the shared part of the field kinds; dialects override the rest.
func ddlType(f *metadata.Field) string {
	switch f.Kind {
	case metadata.KindDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", f.Precision, f.Scale)
	case metadata.KindDate:
		return "DATE"
	case metadata.KindBoolean:
		return "BOOLEAN"
	case metadata.KindImage:
		return "VARCHAR(255)"
	case metadata.KindReference:
		return "BIGINT"
	}
	if f.MaxLength > 0 {
		return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
	}
	return "TEXT"
}
