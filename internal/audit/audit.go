// Package audit records who changed what. Every committed mutation and every
// report export is written to the action log table and to the structured log.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// Change is one committed, user-visible event.
type Change struct {
	Principal *metadata.Principal
	Action    Action
	Entity    string
	RecordID  string
	Display   string
	Detail    string
}

// Recorder receives changes after they are committed. It never fails the
// operation that produced the change.
type Recorder interface {
	RecordChanged(ctx context.Context, change Change)
}

// Nop discards every change.
type Nop struct{}

func (Nop) RecordChanged(context.Context, Change) {}

// DBRecorder appends changes to the action log table.
type DBRecorder struct {
	store  *store.Store
	logger *zap.Logger
}

func NewDBRecorder(s *store.Store, logger *zap.Logger) *DBRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBRecorder{store: s, logger: logger}
}

func (r *DBRecorder) RecordChanged(ctx context.Context, c Change) {
	var userID, username string
	if c.Principal != nil {
		userID, username = c.Principal.ID, c.Principal.Username
	}

	r.logger.Info("record changed",
		zap.String("action", string(c.Action)),
		zap.String("entity", c.Entity),
		zap.String("record_id", c.RecordID),
		zap.String("display", c.Display),
		zap.String("user", username),
	)

	d := r.store.Dialect
	q := fmt.Sprintf(
		"INSERT INTO %s (user_id, username, action, entity, record_id, display, detail, created_at) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		store.ActionLogTable,
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4),
		d.Placeholder(5), d.Placeholder(6), d.Placeholder(7), d.Placeholder(8),
	)
	display := c.Display
	if runes := []rune(display); len(runes) > 255 {
		display = string(runes[:255])
	}
	_, err := r.store.DB.ExecContext(ctx, q,
		userID, username, string(c.Action), c.Entity, c.RecordID, display, c.Detail, time.Now().UTC())
	if err != nil {
		r.logger.Error("write action log", zap.String("entity", c.Entity), zap.Error(err))
	}
}

// Entry is a stored action log row.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	RecordID  string    `json:"record_id"`
	Display   string    `json:"display"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recent returns the newest entries first.
func (r *DBRecorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(
		"SELECT id, user_id, username, action, entity, record_id, display, detail, created_at FROM %s ORDER BY id DESC LIMIT %s",
		store.ActionLogTable, r.store.Dialect.Placeholder(1))
	rows, err := r.store.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list action log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var userID, username, entity, recordID, display, detail *string
		if err := rows.Scan(&e.ID, &userID, &username, &e.Action, &entity, &recordID, &display, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		e.UserID, e.Username, e.Entity = deref(userID), deref(username), deref(entity)
		e.RecordID, e.Display, e.Detail = deref(recordID), deref(display), deref(detail)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than retentionDays and returns how many were removed.
func (r *DBRecorder) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	q := fmt.Sprintf("DELETE FROM %s WHERE created_at < %s", store.ActionLogTable, r.store.Dialect.Placeholder(1))
	n, err := store.Exec(ctx, r.store.DB, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune action log: %w", err)
	}
	if n > 0 {
		r.logger.Info("pruned action log", zap.Int64("deleted", n), zap.Int("retention_days", retentionDays))
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
