package report

import (
	"fmt"
	"strings"
	"unicode"

	"catering-backend/internal/engine"
	"catering-backend/internal/metadata"
	"catering-backend/internal/store"
)

// Rejection reasons returned to the caller.
const (
	ReasonEmpty          = "query text is required"
	ReasonNotSelect      = "only read queries permitted: the query must start with SELECT"
	ReasonMultiStatement = "only a single statement is permitted"
	ReasonSelectInto     = "SELECT INTO is not permitted"
)

// systemTables are never queryable, whatever the role. Names starting
// with a system prefix are rejected as well.
var systemTables = map[string]bool{
	store.UsersTable:     true,
	store.ActionLogTable: true,
}

var systemPrefixes = []string{"auth_", "django_", "sqlite_", "pg_", "information_schema", "_"}

// IsSystemTable reports whether a physical table, or the schema holding
// it, belongs to the identity, audit or catalog layer.
func IsSystemTable(ref TableRef) bool {
	for _, name := range []string{ref.Schema, ref.Name} {
		if name == "" {
			continue
		}
		if systemTables[name] {
			return true
		}
		for _, prefix := range systemPrefixes {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		}
	}
	return false
}

// AllowedTable is one entry of a principal's allow-list.
type AllowedTable struct {
	Name     string `json:"name"`  // logical name, no prefix
	Table    string `json:"table"` // physical name
	Label    string `json:"label"`
	Junction bool   `json:"junction,omitempty"`
}

// AllowedTables returns the principal's visible entities followed by the
// junction tables of their many-to-many relations.
func AllowedTables(p *metadata.Principal, reg *metadata.Registry) []AllowedTable {
	var out []AllowedTable
	var junctions []AllowedTable
	for _, v := range engine.VisibleEntities(p, reg) {
		out = append(out, AllowedTable{Name: v.Name, Table: metadata.TablePrefix + v.Name, Label: v.Label})
		for _, rel := range reg.ManyToMany(v.Name) {
			label := rel.Label
			if label == "" {
				label = rel.Name
			}
			junctions = append(junctions, AllowedTable{
				Name:     rel.JunctionName(),
				Table:    rel.JoinTable,
				Label:    fmt.Sprintf("%s: %s", v.Label, label),
				Junction: true,
			})
		}
	}
	return append(out, junctions...)
}

// Gate validates reporting queries: a syntax gate followed by the
// table allow-list gate. It is a best-effort lexical boundary, not a SQL
// parser; execution still runs read-only where the database supports it.
type Gate struct {
	registry *metadata.Registry
}

func NewGate(reg *metadata.Registry) *Gate {
	return &Gate{registry: reg}
}

// Check returns the query to execute, normalized by dropping a trailing
// semicolon, or a QUERY_REJECTED error naming the reason.
func (g *Gate) Check(p *metadata.Principal, query string) (string, error) {
	if p == nil {
		return "", engine.UnauthorizedError("Authentication required")
	}
	normalized, err := CheckSyntax(query)
	if err != nil {
		return "", err
	}

	allowed := make(map[string]bool)
	for _, t := range AllowedTables(p, g.registry) {
		allowed[t.Name] = true
	}
	for _, ref := range ReferencedTables(normalized) {
		if IsSystemTable(ref) {
			return "", engine.QueryRejectedError(fmt.Sprintf("access to system table %s is not permitted", ref))
		}
		logical := strings.TrimPrefix(ref.Name, metadata.TablePrefix)
		if logical == "" || !allowed[logical] {
			return "", engine.QueryRejectedError(fmt.Sprintf("the query uses a table not permitted for your role: %s", ref))
		}
	}
	if err := checkNames(normalized, allowed); err != nil {
		return "", err
	}
	return normalized, nil
}

// checkNames looks at every bare or quoted name of the query, wherever it
// stands. A system name or a prefixed table outside the allow-list is
// rejected even when the FROM scan did not see it as a table.
func checkNames(query string, allowed map[string]bool) error {
	for _, mode := range lexModes {
		for _, t := range tokenize(query, mode) {
			if !isName(t) {
				continue
			}
			name := strings.ToLower(t.text)
			if IsSystemTable(TableRef{Name: name}) {
				return engine.QueryRejectedError(fmt.Sprintf("access to system table %s is not permitted", name))
			}
			if logical, ok := strings.CutPrefix(name, metadata.TablePrefix); ok && !allowed[logical] {
				return engine.QueryRejectedError(fmt.Sprintf("the query uses a table not permitted for your role: %s", name))
			}
		}
	}
	return nil
}

// CheckSyntax is the syntax gate. The query must start with SELECT
// followed by whitespace, hold exactly one statement and not select INTO
// a new table.
func CheckSyntax(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", engine.QueryRejectedError(ReasonEmpty)
	}
	if len(q) < 7 || !strings.EqualFold(q[:6], "SELECT") || !unicode.IsSpace(rune(q[6])) {
		return "", engine.QueryRejectedError(ReasonNotSelect)
	}

	if toks := tokenize(q, lexStandard); toks[len(toks)-1].punct(";") {
		q = strings.TrimSpace(q[:toks[len(toks)-1].pos])
	}
	for _, mode := range lexModes {
		depth := 0
		for _, t := range tokenize(q, mode) {
			switch {
			case t.punct(";"):
				return "", engine.QueryRejectedError(ReasonMultiStatement)
			case t.punct("("):
				depth++
			case t.punct(")"):
				depth--
			case depth == 0 && t.keyword("INTO"):
				return "", engine.QueryRejectedError(ReasonSelectInto)
			}
		}
	}
	return q, nil
}
