package engine

import (
	"strings"

	"catering-backend/internal/metadata"
)

// changedFields returns the fields an update actually modifies, in field
// order, followed by the many-to-many relations whose membership changes.
// current holds the stored target ids per relation name.
func changedFields(entity *metadata.Entity, plan *WritePlan, existing map[string]any, current map[string][]int64) []string {
	var changed []string
	for i := range entity.Fields {
		f := &entity.Fields[i]
		v, ok := plan.Values[f.Name]
		if !ok {
			continue
		}
		if !sameValue(f, v, existing[f.Column()]) {
			changed = append(changed, f.Name)
		}
	}
	for _, rw := range plan.Relations {
		if !sameIDs(rw.TargetIDs, current[rw.Relation.Name]) {
			changed = append(changed, rw.Relation.Name)
		}
	}
	return changed
}

// sameValue compares a planned value with a stored one in display form, so
// that "12.5" and 12.50 or a time.Time and its ISO date compare equal.
func sameValue(f *metadata.Field, planned, stored any) bool {
	if planned == nil || stored == nil {
		return planned == nil && stored == nil
	}
	return displayValue(f, planned) == displayValue(f, stored)
}

// replacedFiles returns the stored keys of image fields that the update
// overwrites or clears.
func replacedFiles(entity *metadata.Entity, plan *WritePlan, existing map[string]any) []string {
	var keys []string
	for i := range entity.Fields {
		f := &entity.Fields[i]
		if f.Kind != metadata.KindImage {
			continue
		}
		v, ok := plan.Values[f.Name]
		old, _ := existing[f.Column()].(string)
		if !ok || old == "" || sameValue(f, v, old) {
			continue
		}
		keys = append(keys, old)
	}
	return keys
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int64]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

// changeDetail renders the audit detail of an update.
func changeDetail(changed []string) string {
	if len(changed) == 0 {
		return "no fields changed"
	}
	return "changed " + strings.Join(changed, ", ")
}
