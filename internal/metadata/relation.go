package metadata

type Relation struct {
	Name          string `json:"name"`
	Label         string `json:"label,omitempty"`
	Type          string `json:"type"` // one_to_many, many_to_many
	Source        string `json:"source"`
	Target        string `json:"target"`
	TargetKey     string `json:"target_key,omitempty"` // child column for one_to_many
	JoinTable     string `json:"join_table,omitempty"`
	SourceJoinKey string `json:"source_join_key,omitempty"`
	TargetJoinKey string `json:"target_join_key,omitempty"`
	OnDelete      string `json:"on_delete"` // cascade, detach
}

func (r *Relation) IsManyToMany() bool {
	return r.Type == "many_to_many"
}

func (r *Relation) IsOneToMany() bool {
	return r.Type == "one_to_many"
}

// JunctionName is the logical name of the join table: the physical name
// without the table prefix, i.e. <source>_<relation>.
func (r *Relation) JunctionName() string {
	return r.Source + "_" + r.Name
}
