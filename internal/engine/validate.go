package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"catering-backend/internal/metadata"
)

// controlKeys are form keys that steer the request rather than carry data.
var controlKeys = map[string]bool{
	"action":               true,
	"csrfmiddlewaretoken":  true,
	"save_and_add_another": true,
	"_addanother":          true,
}

// isEmpty treats nil and blank strings as "no value".
func isEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

// coerceField validates one submitted value and converts it to its storage
// form. Empty input yields nil; the caller decides whether nil is allowed.
func coerceField(reg *metadata.Registry, f *metadata.Field, raw any) (any, *ErrorDetail) {
	if isEmpty(raw) {
		return nil, nil
	}
	fail := func(rule, format string, args ...any) (any, *ErrorDetail) {
		return nil, &ErrorDetail{Field: f.Name, Rule: rule, Message: fmt.Sprintf(format, args...)}
	}

	switch f.Kind {
	case metadata.KindDecimal:
		d, ok := toDecimal(raw)
		if !ok {
			return fail("type", "Enter a number.")
		}
		if f.NonNegative && d.IsNegative() {
			return fail("min", "Ensure this value is greater than or equal to 0.")
		}
		if !d.Equal(d.Round(int32(f.Scale))) {
			return fail("scale", "Ensure that there are no more than %d decimal places.", f.Scale)
		}
		if f.Precision > 0 {
			whole := d.Abs().Truncate(0)
			digits := 0
			if !whole.IsZero() {
				digits = len(whole.String())
			}
			if limit := f.Precision - f.Scale; digits > limit {
				return fail("precision", "Ensure that there are no more than %d digits before the decimal point.", limit)
			}
		}
		return d.StringFixed(int32(f.Scale)), nil

	case metadata.KindDate:
		t, ok := toDate(raw)
		if !ok {
			return fail("type", "Enter a valid date.")
		}
		return t.Format(isoDateLayout), nil

	case metadata.KindBoolean:
		return toBool(raw), nil

	case metadata.KindChoice:
		s := strings.TrimSpace(fmt.Sprint(raw))
		enum := reg.GetEnum(f.Choices)
		if enum == nil || !enum.Contains(s) {
			return fail("choice", "Select a valid choice. %s is not one of the available choices.", s)
		}
		return s, nil

	case metadata.KindReference:
		id, ok := toInt64(raw)
		if !ok || id <= 0 {
			return fail("type", "Select a valid choice.")
		}
		return id, nil

	default:
		s := strings.TrimSpace(fmt.Sprint(raw))
		if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			return fail("max_length", "Ensure this value has at most %d characters (it has %d).", f.MaxLength, utf8.RuneCountInString(s))
		}
		return s, nil
	}
}

// coerceIDs converts a submitted id list, dropping duplicates.
func coerceIDs(name string, raw []any) ([]int64, *ErrorDetail) {
	ids := make([]int64, 0, len(raw))
	seen := make(map[int64]bool, len(raw))
	for _, v := range raw {
		if isEmpty(v) {
			continue
		}
		id, ok := toInt64(v)
		if !ok || id <= 0 {
			return nil, &ErrorDetail{Field: name, Rule: "type", Message: fmt.Sprintf("%v is not a valid value.", v)}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// PlanWrite validates input against the entity and returns the write to
// perform. existing is nil for a create and the stored row for an update.
// Reference existence is checked later, inside the write transaction.
func PlanWrite(reg *metadata.Registry, entity *metadata.Entity, in MutationInput, existing map[string]any) (*WritePlan, []ErrorDetail) {
	plan := &WritePlan{
		IsCreate: existing == nil,
		Entity:   entity,
		Values:   make(map[string]any),
	}
	var errs []ErrorDetail

	unknown := make([]string, 0)
	for key := range in.Fields {
		if key != entity.PrimaryKey && !entity.HasField(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, ErrorDetail{Field: key, Rule: "unknown", Message: "Unknown field."})
	}

	for i := range entity.Fields {
		f := &entity.Fields[i]
		raw, present := in.Fields[f.Name]
		if !present {
			if !plan.IsCreate {
				continue
			}
			if f.Default != nil {
				plan.Values[f.Name] = f.Default
			} else if f.Required() {
				errs = append(errs, ErrorDetail{Field: f.Name, Rule: "required", Message: "This field is required."})
			}
			continue
		}

		v, detail := coerceField(reg, f, raw)
		if detail != nil {
			errs = append(errs, *detail)
			continue
		}
		if v == nil && !f.Nullable {
			if f.Default == nil {
				errs = append(errs, ErrorDetail{Field: f.Name, Rule: "required", Message: "This field is required."})
				continue
			}
			v = f.Default
		}
		plan.Values[f.Name] = v
	}

	names := make([]string, 0, len(in.Relations))
	for name := range in.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rel := reg.FindManyToMany(entity.Name, name)
		if rel == nil {
			errs = append(errs, ErrorDetail{Field: name, Rule: "unknown", Message: "Unknown relation."})
			continue
		}
		ids, detail := coerceIDs(name, in.Relations[name])
		if detail != nil {
			errs = append(errs, *detail)
			continue
		}
		plan.Relations = append(plan.Relations, RelationWrite{Relation: rel, TargetIDs: ids})
	}

	if len(errs) > 0 {
		return plan, errs
	}
	action, old := "create", map[string]any(nil)
	if !plan.IsCreate {
		action, old = "update", ruleRecord(entity, nil, existing)
	}
	return plan, EvaluateRules(reg, entity, ruleRecord(entity, plan.Values, existing), old, action)
}

// ruleRecord merges new values over the stored row, keyed by field name,
// in the shapes rule expressions compare: numbers, ISO date strings, ids.
func ruleRecord(entity *metadata.Entity, values, existing map[string]any) map[string]any {
	out := make(map[string]any, len(entity.Fields))
	for i := range entity.Fields {
		f := &entity.Fields[i]
		v, ok := values[f.Name]
		if !ok {
			v = existing[f.Column()]
		}
		out[f.Name] = ruleValue(f, v)
	}
	return out
}

func ruleValue(f *metadata.Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case metadata.KindDecimal:
		if d, ok := toDecimal(v); ok {
			return d.InexactFloat64()
		}
	case metadata.KindDate:
		if t, ok := toDate(v); ok {
			return t.Format(isoDateLayout)
		}
	case metadata.KindReference:
		if id, ok := toInt64(v); ok {
			return id
		}
	case metadata.KindBoolean:
		return toBool(v)
	}
	return v
}
