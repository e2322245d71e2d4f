package engine

import (
	"context"
	"fmt"
	"strings"

	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// Record is one row as handed to the presentation layer.
type Record struct {
	ID      int64          `json:"id"`
	Display string         `json:"display"`
	Values  map[string]any `json:"values"`
}

// ReferenceValue is a foreign key together with the target's display string.
type ReferenceValue struct {
	ID      int64  `json:"id"`
	Display string `json:"display"`
}

const maxDisplayDepth = 4

// displayResolver renders record display strings. Referenced records are
// loaded in batches and cached for the lifetime of one request.
type displayResolver struct {
	q        store.Querier
	dialect  store.Dialect
	registry *metadata.Registry
	cache    map[string]map[int64]string
}

func newDisplayResolver(q store.Querier, d store.Dialect, reg *metadata.Registry) *displayResolver {
	return &displayResolver{q: q, dialect: d, registry: reg, cache: make(map[string]map[int64]string)}
}

// preload fetches the display strings of every record referenced by rows.
// The listed entity resolves all of its references; deeper levels only
// resolve references that take part in a display string.
func (r *displayResolver) preload(ctx context.Context, entity *metadata.Entity, rows []map[string]any, depth int) error {
	if depth > maxDisplayDepth || len(rows) == 0 {
		return nil
	}
	for _, f := range entity.ReferenceFields() {
		if depth > 0 && !usesInDisplay(entity, f.Name) {
			continue
		}
		target := r.registry.GetEntity(f.References)
		if target == nil {
			continue
		}
		known := r.cache[target.Name]
		seen := make(map[int64]bool)
		var ids []any
		for _, row := range rows {
			id, ok := toInt64(row[f.Column()])
			if !ok || seen[id] {
				continue
			}
			if _, cached := known[id]; cached {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}

		qr := BuildByIDsSQL(r.dialect, target, ids)
		targetRows, err := store.QueryRows(ctx, r.q, qr.SQL, qr.Params...)
		if err != nil {
			return fmt.Errorf("load %s display: %w", target.Name, err)
		}
		if err := r.preload(ctx, target, targetRows, depth+1); err != nil {
			return err
		}
		if r.cache[target.Name] == nil {
			r.cache[target.Name] = make(map[int64]string)
		}
		for _, row := range targetRows {
			if id, ok := toInt64(row[target.PrimaryKey]); ok {
				r.cache[target.Name][id] = r.recordDisplay(target, row)
			}
		}
	}
	return nil
}

func usesInDisplay(entity *metadata.Entity, field string) bool {
	for _, name := range entity.Display {
		if name == field {
			return true
		}
	}
	return false
}

// recordDisplay joins the entity's display fields with " - ".
func (r *displayResolver) recordDisplay(entity *metadata.Entity, row map[string]any) string {
	var parts []string
	for _, name := range entity.Display {
		f := entity.GetField(name)
		if f == nil {
			continue
		}
		var s string
		if f.Kind == metadata.KindReference {
			s = r.reference(f.References, row[f.Column()])
		} else {
			s = displayValue(f, row[f.Column()])
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s #%v", entity.Label, row[entity.PrimaryKey])
	}
	return strings.Join(parts, " - ")
}

// reference returns the cached display string of a referenced record.
func (r *displayResolver) reference(target string, v any) string {
	id, ok := toInt64(v)
	if !ok {
		return ""
	}
	if s, ok := r.cache[target][id]; ok {
		return s
	}
	return fmt.Sprintf("#%d", id)
}

// toRecord converts a stored row into a Record. References must be preloaded.
func (r *displayResolver) toRecord(entity *metadata.Entity, row map[string]any) Record {
	rec := Record{Values: make(map[string]any, len(entity.Fields))}
	rec.ID, _ = toInt64(row[entity.PrimaryKey])
	for i := range entity.Fields {
		f := &entity.Fields[i]
		v := row[f.Column()]
		if f.Kind == metadata.KindReference && v != nil {
			id, _ := toInt64(v)
			rec.Values[f.Name] = ReferenceValue{ID: id, Display: r.reference(f.References, v)}
			continue
		}
		rec.Values[f.Name] = outputValue(f, v)
	}
	rec.Display = r.recordDisplay(entity, row)
	return rec
}
