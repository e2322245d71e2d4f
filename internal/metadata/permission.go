package metadata

type Action string

const (
	ActionView   Action = "view"
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

// Actions lists every action in display order.
var Actions = []Action{ActionView, ActionAdd, ActionChange, ActionDelete}

// ReferenceEntities are viewable by every role.
var ReferenceEntities = []string{"country", "city", "street", "unitofmeasurement", "assortmentgroup"}

// Grant gives a set of actions on one entity.
type Grant struct {
	Entity  string   `json:"entity"`
	Actions []Action `json:"actions"`
}

// RolePolicy is the static grant table and curated landing list of a role.
// A nil Visible list means every table-backed entity.
type RolePolicy struct {
	Role    Role     `json:"role"`
	Label   string   `json:"label"`
	Grants  []Grant  `json:"grants"`
	Visible []string `json:"visible,omitempty"`
}

func grants(actions []Action, entities ...string) []Grant {
	out := make([]Grant, len(entities))
	for i, e := range entities {
		out[i] = Grant{Entity: e, Actions: actions}
	}
	return out
}

var view = []Action{ActionView}

var hrEntities = []string{"position", "employee", "placeofwork", "department", "profession", "specialization", "classification", "workbook"}

var policies = map[Role]*RolePolicy{
	RoleDirector: {
		Role:  RoleDirector,
		Label: "Director",
	},
	RoleManager: {
		Role:  RoleManager,
		Label: "Manager",
		Grants: append(
			grants(view, "assortmentgroup", "unitofmeasurement", "bank", "country", "city", "street",
				"provider", "product", "division", "report", "reportdish"),
			grants(Actions, "dish", "ingredient", "request", "requestproduct", "delivery", "deliveryproduct")...,
		),
		Visible: []string{
			"dish", "ingredient", "request", "requestproduct", "delivery", "deliveryproduct",
			"product", "provider", "report", "reportdish", "bank", "division",
			"country", "city", "street", "unitofmeasurement", "assortmentgroup",
		},
	},
	RoleChef: {
		Role:  RoleChef,
		Label: "Chef",
		Grants: append(
			grants(view, "dish", "product", "assortmentgroup", "unitofmeasurement", "country", "city", "street"),
			Grant{Entity: "ingredient", Actions: []Action{ActionView, ActionChange}},
		),
		Visible: []string{"dish", "product", "ingredient", "assortmentgroup", "unitofmeasurement", "country", "city", "street"},
	},
	RoleHRManager: {
		Role:  RoleHRManager,
		Label: "HR manager",
		Grants: append(
			grants(Actions, hrEntities...),
			grants(view, "country", "city", "street")...,
		),
		Visible: append(append([]string(nil), "employee", "position", "placeofwork", "department",
			"profession", "specialization", "classification", "workbook"), "country", "city", "street"),
	},
}

// Policy returns the static policy of a role, or nil for no role.
func Policy(role Role) *RolePolicy {
	return policies[role]
}

// Allows reports whether the grant table lists (entity, action).
func (p *RolePolicy) Allows(entity string, action Action) bool {
	if p == nil {
		return false
	}
	for _, g := range p.Grants {
		if g.Entity != entity {
			continue
		}
		for _, a := range g.Actions {
			if a == action {
				return true
			}
		}
	}
	return false
}

// IsReferenceEntity reports whether every role may view the entity.
func IsReferenceEntity(entity string) bool {
	for _, e := range ReferenceEntities {
		if e == entity {
			return true
		}
	}
	return false
}
