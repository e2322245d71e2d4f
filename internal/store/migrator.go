package store

import (
	"context"
	"fmt"
	"strings"

	"catering-backend/internal/metadata"
)

type Migrator struct {
	store *Store
}

func NewMigrator(store *Store) *Migrator {
	return &Migrator{store: store}
}

// MigrateAll creates the table of every registered entity and every join
// table that does not exist yet. Entities are created in registry order,
// which lists referenced entities first.
func (m *Migrator) MigrateAll(ctx context.Context, reg *metadata.Registry) error {
	for _, entity := range reg.ListEntities() {
		if err := m.Migrate(ctx, reg, entity); err != nil {
			return err
		}
	}
	for _, entity := range reg.ListEntities() {
		for _, rel := range reg.ManyToMany(entity.Name) {
			if err := m.MigrateJoinTable(ctx, reg, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

// Migrate creates the entity's table if it doesn't exist.
func (m *Migrator) Migrate(ctx context.Context, reg *metadata.Registry, entity *metadata.Entity) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}
	if exists {
		return nil
	}

	cols := []string{m.store.Dialect.PrimaryKeyDef(entity.PrimaryKey)}
	for i := range entity.Fields {
		cols = append(cols, m.buildColumnDef(reg, &entity.Fields[i]))
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", entity.Table, strings.Join(cols, ",\n\t"))
	if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", entity.Table, err)
	}

	for _, f := range entity.ReferenceFields() {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", entity.Table, f.Column(), entity.Table, f.Column())
		if _, err := m.store.DB.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index on %s.%s: %w", entity.Table, f.Column(), err)
		}
	}
	return nil
}

// MigrateJoinTable creates a join table for a many-to-many relation if it doesn't exist.
func (m *Migrator) MigrateJoinTable(ctx context.Context, reg *metadata.Registry, rel *metadata.Relation) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, rel.JoinTable)
	if err != nil {
		return fmt.Errorf("check join table exists: %w", err)
	}
	if exists {
		return nil
	}

	source := reg.GetEntity(rel.Source)
	target := reg.GetEntity(rel.Target)
	if source == nil || target == nil {
		return fmt.Errorf("cannot resolve entities for join table %s", rel.JoinTable)
	}
	key := &metadata.Field{Kind: metadata.KindReference}
	keyType := m.store.Dialect.ColumnType(key)

	ddl := fmt.Sprintf(
		`CREATE TABLE %s (
	%s,
	%s %s NOT NULL REFERENCES %s(%s) ON DELETE CASCADE,
	%s %s NOT NULL REFERENCES %s(%s) ON DELETE CASCADE,
	UNIQUE (%s, %s)
)`,
		rel.JoinTable,
		m.store.Dialect.PrimaryKeyDef("id"),
		rel.SourceJoinKey, keyType, source.Table, source.PrimaryKey,
		rel.TargetJoinKey, keyType, target.Table, target.PrimaryKey,
		rel.SourceJoinKey, rel.TargetJoinKey,
	)
	if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create join table %s: %w", rel.JoinTable, err)
	}
	return nil
}

func (m *Migrator) buildColumnDef(reg *metadata.Registry, f *metadata.Field) string {
	col := fmt.Sprintf("%s %s", f.Column(), m.store.Dialect.ColumnType(f))
	if !f.Nullable {
		col += " NOT NULL"
	}
	if f.Default != nil {
		col += " DEFAULT " + defaultLiteral(f.Default)
	}
	if f.Kind == metadata.KindReference {
		if target := reg.GetEntity(f.References); target != nil {
			col += fmt.Sprintf(" REFERENCES %s(%s) ON DELETE CASCADE", target.Table, target.PrimaryKey)
		}
	}
	return col
}

func defaultLiteral(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		s := fmt.Sprintf("%v", val)
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}
