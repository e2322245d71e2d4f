package metadata

// EntityDescriptor is the rendering-oriented view of an entity.
type EntityDescriptor struct {
	Name       string            `json:"name"`
	Label      string            `json:"label"`
	Plural     string            `json:"plural"`
	Fields     []FieldDescriptor `json:"fields"`
	ManyToMany []FieldDescriptor `json:"many_to_many,omitempty"`
}

type FieldDescriptor struct {
	Name      string     `json:"name"`
	Label     string     `json:"label"`
	Kind      FieldKind  `json:"kind"`
	Nullable  bool       `json:"nullable"`
	MaxLength int        `json:"max_length,omitempty"`
	Precision int        `json:"precision,omitempty"`
	Scale     int        `json:"scale,omitempty"`
	Choices   []string   `json:"choices,omitempty"`
	Target    *TargetRef `json:"target,omitempty"`
}

// TargetRef names the entity a reference or many-to-many field points at.
type TargetRef struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Plural string `json:"plural"`
}

// ManyToManyNames returns the names of the many-to-many fields.
func (d *EntityDescriptor) ManyToManyNames() []string {
	names := make([]string, len(d.ManyToMany))
	for i, f := range d.ManyToMany {
		names[i] = f.Name
	}
	return names
}
