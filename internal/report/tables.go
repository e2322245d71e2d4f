package report

import "strings"

// TableRef is a table named after FROM or JOIN, optionally schema-qualified.
// Names are lower-cased.
type TableRef struct {
	Schema string
	Name   string
}

func (t TableRef) String() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// functionsWithFrom take FROM inside their argument list, e.g.
// EXTRACT(YEAR FROM date). That FROM does not introduce a table.
var functionsWithFrom = map[string]bool{
	"EXTRACT":   true,
	"SUBSTRING": true,
	"TRIM":      true,
	"OVERLAY":   true,
	"POSITION":  true,
}

// fromEnders close a FROM clause at the depth it was opened.
var fromEnders = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true,
	"OFFSET": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
	"WINDOW": true, "FETCH": true, "FOR": true, "RETURNING": true, "SELECT": true,
}

// queryStarts open a subquery when they follow "(".
var queryStarts = map[string]bool{"SELECT": true, "WITH": true, "VALUES": true, "TABLE": true}

// ReferencedTables lists every table named after FROM, JOIN or TABLE
// anywhere in the query, subqueries and parenthesised joins included, in
// order of appearance. The query is read under the quoting rules of every
// supported database and the names found by any reading are merged. This
// is a lexical scan, not a parser: it errs towards reporting more names,
// never fewer.
func ReferencedTables(query string) []TableRef {
	var refs []TableRef
	seen := make(map[TableRef]bool)
	for _, mode := range lexModes {
		for _, ref := range scanTables(tokenize(query, mode)) {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// scope is the scanner state of one parenthesis level.
type scope struct {
	noFrom bool // argument list of EXTRACT(... FROM ...) and friends
	inFrom bool // inside a FROM clause opened at this level
	expect bool // the next name is a table
}

func scanTables(toks []token) []TableRef {
	var refs []TableRef
	stack := []*scope{{}}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		cur := stack[len(stack)-1]
		switch {
		case t.punct("("):
			next := &scope{}
			switch {
			case cur.expect && !(i+1 < len(toks) && toks[i+1].kind == tokWord && queryStarts[strings.ToUpper(toks[i+1].text)]):
				// (a CROSS JOIN b): the tables continue inside
				next.inFrom, next.expect = true, true
				cur.expect = false
			case cur.expect:
				cur.expect = false
			case i > 0 && toks[i-1].kind == tokWord && functionsWithFrom[strings.ToUpper(toks[i-1].text)]:
				next.noFrom = true
			}
			stack = append(stack, next)
		case t.punct(")"):
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case t.keyword("FROM"):
			if cur.noFrom || (i > 0 && toks[i-1].keyword("DISTINCT")) {
				continue // IS [NOT] DISTINCT FROM
			}
			cur.inFrom, cur.expect = true, true
		case t.keyword("JOIN"):
			cur.inFrom, cur.expect = true, true
		case t.keyword("TABLE"):
			cur.expect = true
		case cur.expect && (t.keyword("ONLY") || t.keyword("LATERAL")):
		case cur.expect && isName(t):
			ref, next := readTableRef(toks, i)
			refs = append(refs, ref)
			cur.expect = false
			i = next - 1
		case cur.expect:
			cur.expect = false
		case !cur.inFrom:
		case t.punct(","):
			cur.expect = true
		case t.kind == tokWord && fromEnders[strings.ToUpper(t.text)]:
			cur.inFrom = false
		}
	}
	return refs
}

// readTableRef reads "[schema.]name" starting at toks[i] and returns the
// index after it. Aliases and table function arguments are left to the
// caller's scan.
func readTableRef(toks []token, i int) (TableRef, int) {
	parts := []string{strings.ToLower(toks[i].text)}
	i++
	for i+1 < len(toks) && toks[i].punct(".") && isName(toks[i+1]) {
		parts = append(parts, strings.ToLower(toks[i+1].text))
		i += 2
	}
	ref := TableRef{Name: parts[len(parts)-1]}
	if len(parts) > 1 {
		ref.Schema = parts[len(parts)-2]
	}
	return ref, i
}

func isName(t token) bool {
	return t.kind == tokWord || t.kind == tokIdent
}
