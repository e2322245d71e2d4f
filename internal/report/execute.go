package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"catering-backend/internal/engine"
	"catering-backend/internal/store"
)

// ResultSet holds column names and rows of opaque scalars in result order.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Executor runs gate-approved queries.
type Executor struct {
	store *store.Store
}

func NewExecutor(s *store.Store) *Executor {
	return &Executor{store: s}
}

// Run executes query verbatim inside a transaction that is always rolled
// back, read-only where the dialect supports it. Store failures come back
// as EXECUTION_ERROR carrying the store's message.
func (e *Executor) Run(ctx context.Context, query string) (*ResultSet, error) {
	tx, err := e.store.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: e.store.Dialect.ReadOnlyQueries()})
	if err != nil {
		return nil, fmt.Errorf("begin report tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	columns, rows, err := store.QueryTable(ctx, tx, query)
	if err != nil {
		return nil, engine.ExecutionError(strings.TrimPrefix(err.Error(), "query: "))
	}
	for _, row := range rows {
		for i, v := range row {
			row[i] = scalar(v)
		}
	}
	if rows == nil {
		rows = [][]any{}
	}
	return &ResultSet{Columns: columns, Rows: rows}, nil
}

// scalar renders time values as text: a date when there is no clock part.
func scalar(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
