package metadata

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownEntity is returned by Describe for names that are not tables.
var ErrUnknownEntity = errors.New("unknown entity")

type Registry struct {
	mu                sync.RWMutex
	entities          map[string]*Entity
	order             []string
	enums             map[string]*Enum
	relationsBySource map[string][]*Relation // keyed by source entity name
	relationsByTarget map[string][]*Relation // keyed by target entity name
	rules             map[string][]*Rule     // keyed by entity name
}

func NewRegistry() *Registry {
	return &Registry{
		entities:          make(map[string]*Entity),
		enums:             make(map[string]*Enum),
		relationsBySource: make(map[string][]*Relation),
		relationsByTarget: make(map[string][]*Relation),
		rules:             make(map[string][]*Rule),
	}
}

// Load replaces the registry contents. Fields are classified, foreign keys
// are checked against the entity set and every foreign key yields a derived
// one_to_many cascade relation from the referenced entity.
func (r *Registry) Load(entities []*Entity, relations []*Relation, enums []*Enum) error {
	byName := make(map[string]*Entity, len(entities))
	order := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.PrimaryKey == "" {
			e.PrimaryKey = "id"
		}
		if e.Table == "" {
			e.Table = TablePrefix + e.Name
		}
		for i := range e.Fields {
			e.Fields[i].Classify()
		}
		byName[e.Name] = e
		order = append(order, e.Name)
	}

	enumsByName := make(map[string]*Enum, len(enums))
	for _, en := range enums {
		enumsByName[en.Name] = en
	}

	all := append([]*Relation(nil), relations...)
	for _, e := range entities {
		for _, f := range e.Fields {
			if f.Kind == KindChoice && enumsByName[f.Choices] == nil {
				return fmt.Errorf("%s.%s: unknown choice set %q", e.Name, f.Name, f.Choices)
			}
			if f.Kind != KindReference {
				continue
			}
			if byName[f.References] == nil {
				return fmt.Errorf("%s.%s: unknown target entity %q", e.Name, f.Name, f.References)
			}
			all = append(all, &Relation{
				Name:      e.Name + "_set",
				Type:      "one_to_many",
				Source:    f.References,
				Target:    e.Name,
				TargetKey: f.Column(),
				OnDelete:  "cascade",
			})
		}
	}

	bySource := make(map[string][]*Relation)
	byTarget := make(map[string][]*Relation)
	for _, rel := range all {
		if byName[rel.Source] == nil || byName[rel.Target] == nil {
			return fmt.Errorf("relation %s: unknown entity", rel.Name)
		}
		bySource[rel.Source] = append(bySource[rel.Source], rel)
		byTarget[rel.Target] = append(byTarget[rel.Target], rel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = byName
	r.order = order
	r.enums = enumsByName
	r.relationsBySource = bySource
	r.relationsByTarget = byTarget
	return nil
}

// LoadRules replaces all custom validation rules.
func (r *Registry) LoadRules(rules []*Rule) {
	byEntity := make(map[string][]*Rule)
	for _, rule := range rules {
		byEntity[rule.Entity] = append(byEntity[rule.Entity], rule)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = byEntity
}

// GetEntity returns the entity with the given name, or nil.
// Enum names are not entities.
func (r *Registry) GetEntity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// ListEntities returns every table-backed entity in registration order.
// Legacy enum types are never part of the list.
func (r *Registry) ListEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		if _, legacy := r.enums[name]; legacy {
			continue
		}
		entities = append(entities, r.entities[name])
	}
	return entities
}

// Describe returns the descriptor for a table-backed entity.
func (r *Registry) Describe(name string) (*EntityDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entities[name]
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	if _, legacy := r.enums[name]; legacy {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}

	d := &EntityDescriptor{Name: e.Name, Label: e.Label, Plural: e.Plural}
	for _, f := range e.Fields {
		if f.Name == e.PrimaryKey {
			continue
		}
		fd := FieldDescriptor{
			Name:      f.Name,
			Label:     f.Label,
			Kind:      f.Kind,
			Nullable:  f.Nullable,
			MaxLength: f.MaxLength,
			Precision: f.Precision,
			Scale:     f.Scale,
		}
		if en := r.enums[f.Choices]; en != nil && f.Kind == KindChoice {
			fd.Choices = append([]string(nil), en.Values...)
		}
		if f.Kind == KindReference {
			fd.Target = r.targetRef(f.References)
		}
		d.Fields = append(d.Fields, fd)
	}
	for _, rel := range r.relationsBySource[name] {
		if !rel.IsManyToMany() {
			continue
		}
		d.ManyToMany = append(d.ManyToMany, FieldDescriptor{
			Name:   rel.Name,
			Label:  rel.Label,
			Kind:   KindManyToMany,
			Target: r.targetRef(rel.Target),
		})
	}
	return d, nil
}

func (r *Registry) targetRef(name string) *TargetRef {
	t := r.entities[name]
	if t == nil {
		return &TargetRef{Name: name}
	}
	return &TargetRef{Name: t.Name, Label: t.Label, Plural: t.Plural}
}

// GetEnum returns a choice set by name, or nil.
func (r *Registry) GetEnum(name string) *Enum {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enums[name]
}

// LegacyTypes returns the names of the enum types excluded from listings.
func (r *Registry) LegacyTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.enums))
	for name := range r.enums {
		names = append(names, name)
	}
	return names
}

// GetRelationsForSource returns all relations where source matches the given entity.
func (r *Registry) GetRelationsForSource(entityName string) []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relationsBySource[entityName]
}

// GetRelationsForTarget returns all relations pointing at the given entity.
func (r *Registry) GetRelationsForTarget(entityName string) []*Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relationsByTarget[entityName]
}

// ManyToMany returns the many-to-many relations owned by an entity.
func (r *Registry) ManyToMany(entityName string) []*Relation {
	var out []*Relation
	for _, rel := range r.GetRelationsForSource(entityName) {
		if rel.IsManyToMany() {
			out = append(out, rel)
		}
	}
	return out
}

// FindManyToMany returns the entity's many-to-many relation with the given name, or nil.
func (r *Registry) FindManyToMany(entityName, relName string) *Relation {
	for _, rel := range r.ManyToMany(entityName) {
		if rel.Name == relName {
			return rel
		}
	}
	return nil
}

// GetRules returns the custom validation rules for an entity.
func (r *Registry) GetRules(entityName string) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[entityName]
}
