package metadata

// Enum is a fixed choice set. Enums are legacy lookup types: they are
// registered so choice fields can resolve them, but they are not tables.
type Enum struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Contains reports whether v is one of the enum's values.
func (e *Enum) Contains(v string) bool {
	for _, val := range e.Values {
		if val == v {
			return true
		}
	}
	return false
}
