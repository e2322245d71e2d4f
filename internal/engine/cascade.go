package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catering-backend/internal/audit"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

const maxCascadeDepth = 8

// DeleteResult lists every record removed by a delete, the requested one first.
type DeleteResult struct {
	Deleted  []DeletedRecord `json:"deleted"`
	Redirect string          `json:"redirect"`
}

type DeletedRecord struct {
	Entity  string `json:"entity"`
	ID      int64  `json:"id"`
	Display string `json:"display"`
}

// Delete removes a record, its dependents and its many-to-many links in
// one transaction.
func (s *Service) Delete(ctx context.Context, name string, id int64, p *metadata.Principal) (*DeleteResult, error) {
	entity, _, err := s.resolveEntity(name)
	if err != nil {
		return nil, err
	}
	if err := CheckPermission(p, entity.Name, metadata.ActionDelete); err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	c := &cascade{tx: tx, dialect: s.store.Dialect, registry: s.registry,
		resolver: newDisplayResolver(tx, s.store.Dialect, s.registry)}
	if err := c.delete(ctx, entity, id, 0); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError(entity.Name, id)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	// Dependents are collected before their parent; report the parent first.
	deleted := make([]DeletedRecord, 0, len(c.deleted))
	for i := len(c.deleted) - 1; i >= 0; i-- {
		d := c.deleted[i]
		deleted = append(deleted, d)
		s.notify(ctx, p, audit.ActionDelete, d.Entity, d.ID, d.Display, "")
	}
	return &DeleteResult{Deleted: deleted, Redirect: ListPath(entity.Name)}, nil
}

type cascade struct {
	tx       *sql.Tx
	dialect  store.Dialect
	registry *metadata.Registry
	resolver *displayResolver
	deleted  []DeletedRecord
}

// delete removes one record after its dependents. A record already removed
// through another path is skipped below the top level.
func (c *cascade) delete(ctx context.Context, entity *metadata.Entity, id int64, depth int) error {
	if depth > maxCascadeDepth {
		return fmt.Errorf("delete %s/%d: cascade deeper than %d levels", entity.Name, id, maxCascadeDepth)
	}

	row, err := fetchRow(ctx, c.tx, c.dialect, entity, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) && depth > 0 {
			return nil
		}
		return err
	}
	if err := c.resolver.preload(ctx, entity, []map[string]any{row}, 0); err != nil {
		return err
	}
	display := c.resolver.recordDisplay(entity, row)

	ph := c.dialect.Placeholder(1)
	for _, rel := range c.registry.GetRelationsForSource(entity.Name) {
		switch {
		case rel.IsManyToMany():
			q := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", rel.JoinTable, rel.SourceJoinKey, ph)
			if _, err := store.Exec(ctx, c.tx, q, id); err != nil {
				return fmt.Errorf("detach %s: %w", rel.Name, err)
			}
		case rel.IsOneToMany() && rel.OnDelete == "cascade":
			child := c.registry.GetEntity(rel.Target)
			if child == nil {
				continue
			}
			q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", child.PrimaryKey, child.Table, rel.TargetKey, ph)
			rows, err := store.QueryRows(ctx, c.tx, q, id)
			if err != nil {
				return fmt.Errorf("load %s: %w", rel.Name, err)
			}
			for _, r := range rows {
				childID, _ := toInt64(r[child.PrimaryKey])
				if err := c.delete(ctx, child, childID, depth+1); err != nil {
					return err
				}
			}
		}
	}
	for _, rel := range c.registry.GetRelationsForTarget(entity.Name) {
		if !rel.IsManyToMany() {
			continue
		}
		q := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", rel.JoinTable, rel.TargetJoinKey, ph)
		if _, err := store.Exec(ctx, c.tx, q, id); err != nil {
			return fmt.Errorf("detach %s: %w", rel.Name, err)
		}
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", entity.Table, entity.PrimaryKey, ph)
	if _, err := store.Exec(ctx, c.tx, q, id); err != nil {
		return fmt.Errorf("delete %s/%d: %w", entity.Name, id, store.MapError(c.dialect, err))
	}
	c.deleted = append(c.deleted, DeletedRecord{Entity: entity.Name, ID: id, Display: display})
	return nil
}
