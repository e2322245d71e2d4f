package engine

import (
	"strings"

	"catering-backend/internal/metadata"
)

// searchText concatenates every stored field of a row: dates as DD.MM.YYYY
// and references as the referenced record's display string.
func (r *displayResolver) searchText(entity *metadata.Entity, row map[string]any) string {
	var parts []string
	for i := range entity.Fields {
		f := &entity.Fields[i]
		v := row[f.Column()]
		if v == nil {
			continue
		}
		if f.Kind == metadata.KindReference {
			parts = append(parts, r.reference(f.References, v))
			continue
		}
		parts = append(parts, displayValue(f, v))
	}
	return strings.Join(parts, " ")
}

// matchesSearch is a case-insensitive substring test.
func matchesSearch(text, term string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(term))
}

// filterRows keeps the rows whose search text contains term, preserving order.
func (r *displayResolver) filterRows(entity *metadata.Entity, rows []map[string]any, term string) []map[string]any {
	if term == "" {
		return rows
	}
	kept := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if matchesSearch(r.searchText(entity, row), term) {
			kept = append(kept, row)
		}
	}
	return kept
}
