package metadata

// Rule is an entity-specific validation expression. The expression is
// evaluated against the merged record; a true result is a violation.
type Rule struct {
	Entity     string `json:"entity"`
	Field      string `json:"field,omitempty"`
	Expression string `json:"expression"`
	Message    string `json:"message"`

	// Compiled holds the compiled expression program (set at load time, not serialized).
	Compiled any `json:"-"`
}
