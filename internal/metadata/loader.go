package metadata

import "fmt"

// LoadCatalog populates the registry with the catering schema and its rules.
// Rule expressions are compiled by the caller (see engine.CompileRules).
func LoadCatalog(reg *Registry) error {
	entities, relations, enums := Catalog()
	if err := reg.Load(entities, relations, enums); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	reg.LoadRules(CatalogRules())
	return nil
}
