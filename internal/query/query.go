// Package query parses the search box language and compiles it to a bleve
// query tree.
//
// The language has two operators: "|" separates alternatives and binds
// loosest, "&" joins required conditions inside an alternative. There is no
// grouping and no escaping. Every input is accepted: a dangling operator
// gets an implicit "*" operand, so "& budget" reads as "* & budget".
//
// A condition matches a document when any of these holds:
//
//   - the condition's words appear as a phrase in content
//   - the condition equals one of the document's tags
//   - the title contains the condition with spaces replaced by "_"
package query

import (
	"strings"
	"unicode"

	"github.com/Aman-CERP/docsearch/internal/fold"
)

// Index field names shared with the index mapping.
const (
	FieldID      = "id"
	FieldTitle   = "title"
	FieldContent = "content"
	FieldPath    = "path"
	FieldTags    = "tags"
)

const (
	opOr  = '|'
	opAnd = '&'

	// Wildcard is the implicit operand inserted next to dangling operators.
	Wildcard = "*"
)

// Condition is one normalized operand, words separated by single spaces.
type Condition string

// Group is a conjunction of conditions.
type Group []Condition

// Query is a disjunction of groups. A Query with no groups matches every
// document.
type Query struct {
	Groups []Group
}

// IsEmpty reports whether q matches everything.
func (q Query) IsEmpty() bool {
	return len(q.Groups) == 0
}

// String renders q in canonical form, e.g. "alpha & beta | gamma".
func (q Query) String() string {
	groups := make([]string, len(q.Groups))
	for i, g := range q.Groups {
		conds := make([]string, len(g))
		for j, c := range g {
			conds[j] = string(c)
		}
		groups[i] = strings.Join(conds, " & ")
	}
	return strings.Join(groups, " | ")
}

// Parse normalizes raw and splits it into groups and conditions.
func Parse(raw string) Query {
	s := strings.TrimSpace(fold.Fold(raw))
	if s == "" {
		return Query{}
	}

	s = fillOperands(s)

	var q Query
	for _, alt := range strings.Split(s, string(opOr)) {
		var g Group
		for _, part := range strings.Split(alt, string(opAnd)) {
			c := strings.Join(strings.Fields(part), " ")
			if c == "" {
				c = Wildcard
			}
			g = append(g, Condition(c))
		}
		q.Groups = append(q.Groups, g)
	}
	return q
}

// fillOperands inserts Wildcard wherever an operator lacks an operand:
// before a leading operator, between consecutive operators and after a
// trailing one. It is a single pass with two states.
func fillOperands(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	needOperand := true
	for _, r := range s {
		switch {
		case r == opOr || r == opAnd:
			if needOperand {
				b.WriteString(Wildcard)
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			needOperand = true
		case unicode.IsSpace(r):
			b.WriteRune(r)
		default:
			b.WriteRune(r)
			needOperand = false
		}
	}
	if needOperand {
		b.WriteByte(' ')
		b.WriteString(Wildcard)
	}
	return b.String()
}
