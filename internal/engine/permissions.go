package engine

import (
	"fmt"

	"catering-backend/internal/metadata"
)

// HasCapability reports whether the principal may perform action on entity.
// Superusers and directors hold every capability. Other roles need a grant,
// except that reference entities are viewable by everyone with a role.
func HasCapability(p *metadata.Principal, entity string, action metadata.Action) bool {
	if p == nil {
		return false
	}
	if p.Unrestricted() {
		return true
	}
	policy := metadata.Policy(p.Role)
	if policy == nil {
		return false
	}
	if policy.Allows(entity, action) {
		return true
	}
	return action == metadata.ActionView && metadata.IsReferenceEntity(entity)
}

// CheckPermission returns nil if allowed, UNAUTHORIZED without a principal
// and FORBIDDEN when the capability is missing.
func CheckPermission(p *metadata.Principal, entity string, action metadata.Action) error {
	if p == nil {
		return UnauthorizedError("Authentication required")
	}
	if !HasCapability(p, entity, action) {
		return ForbiddenError(fmt.Sprintf("Permission denied for %s on %s", action, entity))
	}
	return nil
}

// Capabilities are the write affordances of a principal on one entity.
type Capabilities struct {
	Add    bool `json:"add"`
	Change bool `json:"change"`
	Delete bool `json:"delete"`
}

func CapabilitiesFor(p *metadata.Principal, entity string) Capabilities {
	return Capabilities{
		Add:    HasCapability(p, entity, metadata.ActionAdd),
		Change: HasCapability(p, entity, metadata.ActionChange),
		Delete: HasCapability(p, entity, metadata.ActionDelete),
	}
}

// VisibleEntity is one entry of a role's landing list.
type VisibleEntity struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// VisibleEntities returns the role's curated entity list in curated order,
// filtered by view capability. Unrestricted principals see every entity.
// A principal without a role sees nothing.
func VisibleEntities(p *metadata.Principal, reg *metadata.Registry) []VisibleEntity {
	out := []VisibleEntity{}
	if p == nil {
		return out
	}

	var names []string
	if p.Unrestricted() {
		for _, e := range reg.ListEntities() {
			names = append(names, e.Name)
		}
	} else if policy := metadata.Policy(p.Role); policy != nil {
		names = policy.Visible
	}

	for _, name := range names {
		e := reg.GetEntity(name)
		if e == nil || !HasCapability(p, name, metadata.ActionView) {
			continue
		}
		out = append(out, VisibleEntity{Name: e.Name, Label: e.Plural})
	}
	return out
}
