package metadata

import "strings"

// TablePrefix is prepended to every entity name to form its physical table.
const TablePrefix = "core_"

type Entity struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Plural     string   `json:"plural"`
	Table      string   `json:"table"`
	PrimaryKey string   `json:"primary_key"`
	Ordering   string   `json:"ordering"`          // "-name" sorts by name descending
	Display    []string `json:"display,omitempty"` // fields joined with " - " to render a record
	Fields     []Field  `json:"fields"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns all field names.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// ReferenceFields returns the foreign-reference fields in declaration order.
func (e *Entity) ReferenceFields() []Field {
	var fields []Field
	for _, f := range e.Fields {
		if f.Kind == KindReference {
			fields = append(fields, f)
		}
	}
	return fields
}

// DefaultOrder splits Ordering into a field name and a descending flag.
// Entities without an ordering sort by primary key, newest first.
func (e *Entity) DefaultOrder() (string, bool) {
	o := strings.TrimSpace(e.Ordering)
	if o == "" {
		return e.PrimaryKey, true
	}
	if strings.HasPrefix(o, "-") {
		return o[1:], true
	}
	return o, false
}
