package report

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokWord   tokenKind = iota // keyword or bare identifier
	tokIdent                   // quoted identifier: "x", `x` or [x]
	tokString                  // 'literal'
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int // byte offset in the query
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && strings.EqualFold(t.text, text)
}

// keyword reports whether t is the bare word kw, case-insensitively.
func (t token) keyword(kw string) bool {
	return t.is(tokWord, kw)
}

func (t token) punct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// lexMode selects the quoting rules of one database. The gate scans a
// query under every mode, so text hidden from one reading is still seen
// by the other.
type lexMode int

const (
	// lexStandard follows SQLite: '' is the only escape in a literal and
	// "x", `x` and [x] quote identifiers.
	lexStandard lexMode = iota
	// lexPostgres adds E'...' literals with backslash escapes and
	// $tag$...$tag$ literals; brackets are subscripts, not quotes.
	lexPostgres
)

var lexModes = []lexMode{lexStandard, lexPostgres}

// tokenize splits a query into tokens. Comments and whitespace are dropped;
// string literals and quoted identifiers are kept whole, so a keyword or
// semicolon inside them is never mistaken for SQL structure. An unterminated
// literal runs to the end of the input.
func tokenize(q string, mode lexMode) []token {
	var toks []token
	i := 0
	for i < len(q) {
		r, size := utf8.DecodeRuneInString(q[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case strings.HasPrefix(q[i:], "--"):
			end := strings.IndexByte(q[i:], '\n')
			if end < 0 {
				i = len(q)
			} else {
				i += end + 1
			}

		case strings.HasPrefix(q[i:], "/*"):
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				i = len(q)
			} else {
				i += end + 4
			}

		case r == '\'':
			text, next := readQuoted(q, i, '\'', false)
			toks = append(toks, token{kind: tokString, text: text, pos: i})
			i = next

		case r == '"' || (r == '`' && mode == lexStandard):
			text, next := readQuoted(q, i, byte(r), false)
			toks = append(toks, token{kind: tokIdent, text: text, pos: i})
			i = next

		case r == '[' && mode == lexStandard:
			end := strings.IndexByte(q[i+1:], ']')
			if end < 0 {
				toks = append(toks, token{kind: tokIdent, text: q[i+1:], pos: i})
				i = len(q)
			} else {
				toks = append(toks, token{kind: tokIdent, text: q[i+1 : i+1+end], pos: i})
				i += end + 2
			}

		case r == '$' && mode == lexPostgres && dollarTag(q[i:]) != "":
			tag := dollarTag(q[i:])
			body := q[i+len(tag):]
			end := strings.Index(body, tag)
			if end < 0 {
				toks = append(toks, token{kind: tokString, text: body, pos: i})
				i = len(q)
			} else {
				toks = append(toks, token{kind: tokString, text: body[:end], pos: i})
				i += len(tag) + end + len(tag)
			}

		case isWordStart(r):
			start := i
			for i < len(q) {
				r, size := utf8.DecodeRuneInString(q[i:])
				if !isWordPart(r) {
					break
				}
				i += size
			}
			word := q[start:i]
			if mode == lexPostgres && strings.EqualFold(word, "E") && i < len(q) && q[i] == '\'' {
				text, next := readQuoted(q, i, '\'', true)
				toks = append(toks, token{kind: tokString, text: text, pos: start})
				i = next
				continue
			}
			toks = append(toks, token{kind: tokWord, text: word, pos: start})

		case unicode.IsDigit(r):
			start := i
			for i < len(q) && (q[i] == '.' || unicode.IsDigit(rune(q[i]))) {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: q[start:i], pos: start})

		default:
			toks = append(toks, token{kind: tokPunct, text: q[i : i+size], pos: i})
			i += size
		}
	}
	return toks
}

// readQuoted reads a literal opened by quote at q[start]. A doubled quote
// stays inside the literal. With backslash set, a backslash escapes the
// byte after it, as in postgres E'...' literals.
func readQuoted(q string, start int, quote byte, backslash bool) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(q) {
		c := q[i]
		switch {
		case backslash && c == '\\' && i+1 < len(q):
			b.WriteByte(q[i+1])
			i += 2
		case c == quote && i+1 < len(q) && q[i+1] == quote:
			b.WriteByte(quote)
			i += 2
		case c == quote:
			return b.String(), i + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), len(q)
}

// dollarTag returns the opening tag of a postgres dollar-quoted literal at
// the start of s ("$$" or "$name$"), or "" when s does not open one.
func dollarTag(s string) string {
	if len(s) < 2 || s[0] != '$' {
		return ""
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			return s[:i+1]
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80:
		case c >= '0' && c <= '9' && i > 1:
		default:
			return ""
		}
	}
	return ""
}

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
