package metadata

import (
	"strconv"
	"strings"
)

// FieldKind is the presentation-level classification of a field.
type FieldKind string

const (
	KindText       FieldKind = "text"
	KindDecimal    FieldKind = "decimal"
	KindDate       FieldKind = "date"
	KindBoolean    FieldKind = "boolean"
	KindChoice     FieldKind = "choice"
	KindReference  FieldKind = "reference"
	KindImage      FieldKind = "image"
	KindManyToMany FieldKind = "many_to_many"
)

type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"` // storage type, e.g. VARCHAR(25), NUMERIC(10,3), DATE, IMAGE
	Nullable    bool   `json:"nullable,omitempty"`
	Default     any    `json:"default,omitempty"`
	NonNegative bool   `json:"non_negative,omitempty"`
	References  string `json:"references,omitempty"` // target entity of a foreign key
	Choices     string `json:"choices,omitempty"`    // enum backing a choice field

	// Derived by Classify.
	Kind      FieldKind `json:"kind"`
	MaxLength int       `json:"max_length,omitempty"`
	Precision int       `json:"precision,omitempty"`
	Scale     int       `json:"scale,omitempty"`
}

// Column returns the physical column name. Foreign keys are stored as <name>_id.
func (f *Field) Column() string {
	if f.Kind == KindReference {
		return f.Name + "_id"
	}
	return f.Name
}

// Required reports whether a create must supply a value.
func (f *Field) Required() bool {
	return !f.Nullable && f.Default == nil
}

// Classify derives Kind and its size attributes from the storage type.
// A foreign key wins over the storage type, then a choice set, then the
// storage type itself. Unknown storage types are text.
func (f *Field) Classify() {
	base, args := ParseStorageType(f.Type)
	switch {
	case f.References != "":
		f.Kind = KindReference
	case f.Choices != "":
		f.Kind = KindChoice
		if len(args) > 0 {
			f.MaxLength = args[0]
		}
	default:
		switch base {
		case "NUMERIC", "DECIMAL":
			f.Kind = KindDecimal
			if len(args) > 0 {
				f.Precision = args[0]
			}
			if len(args) > 1 {
				f.Scale = args[1]
			}
		case "DATE":
			f.Kind = KindDate
		case "BOOLEAN", "BOOL":
			f.Kind = KindBoolean
		case "IMAGE", "FILE":
			f.Kind = KindImage
			f.MaxLength = 255
		default:
			f.Kind = KindText
			if len(args) > 0 {
				f.MaxLength = args[0]
			}
		}
	}
}

// ParseStorageType splits "NUMERIC(10, 3)" into "NUMERIC" and [10 3].
// The base is upper-cased; malformed arguments are dropped.
func ParseStorageType(t string) (string, []int) {
	t = strings.TrimSpace(t)
	open := strings.IndexByte(t, '(')
	if open < 0 || !strings.HasSuffix(t, ")") {
		return strings.ToUpper(t), nil
	}
	base := strings.ToUpper(strings.TrimSpace(t[:open]))
	var args []int
	for _, part := range strings.Split(t[open+1:len(t)-1], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return base, nil
		}
		args = append(args, n)
	}
	return base, args
}
