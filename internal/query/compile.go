package query

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// Compile returns the bleve query for q. A non-empty path restricts
// matches to documents whose path equals it exactly.
func (q Query) Compile(path string) blevequery.Query {
	var root blevequery.Query
	if q.IsEmpty() {
		root = bleve.NewMatchAllQuery()
	} else {
		alts := make([]blevequery.Query, 0, len(q.Groups))
		for _, g := range q.Groups {
			conds := make([]blevequery.Query, 0, len(g))
			for _, c := range g {
				conds = append(conds, c.compile())
			}
			alts = append(alts, bleve.NewConjunctionQuery(conds...))
		}
		root = bleve.NewDisjunctionQuery(alts...)
	}

	if path == "" {
		return root
	}
	scope := bleve.NewTermQuery(path)
	scope.SetField(FieldPath)
	return bleve.NewConjunctionQuery(root, scope)
}

func (c Condition) compile() blevequery.Query {
	s := string(c)

	phrase := bleve.NewMatchPhraseQuery(s)
	phrase.SetField(FieldContent)

	tag := bleve.NewTermQuery(s)
	tag.SetField(FieldTags)

	title := bleve.NewWildcardQuery(TitleWildcard(s))
	title.SetField(FieldTitle)

	return bleve.NewDisjunctionQuery(phrase, tag, title)
}

// TitleWildcard is the title pattern for a condition: "*rapport_final*"
// for "rapport final".
func TitleWildcard(cond string) string {
	return Wildcard + strings.ReplaceAll(cond, " ", "_") + Wildcard
}

// Compile parses raw and compiles it in one step.
func Compile(raw, path string) blevequery.Query {
	return Parse(raw).Compile(path)
}
