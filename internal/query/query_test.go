package query

import (
	"strings"
	"testing"

	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"blank", "  \t ", ""},
		{"single word", "budget", "budget"},
		{"phrase", "alpha   beta", "alpha beta"},
		{"precedence", "alpha beta | gamma", "alpha beta | gamma"},
		{"and inside or", "a & b | c & d", "a & b | c & d"},
		{"leading and", "& budget", "* & budget"},
		{"leading or", "| budget", "* | budget"},
		{"trailing operator", "budget &", "budget & *"},
		{"chained operators", "a & | b", "a & * | b"},
		{"doubled operator", "a&&b", "a & * & b"},
		{"lone operator", "|", "* | *"},
		{"folds input", "Évaluation  FINALE", "evaluation finale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input).String())
		})
	}
}

func TestParse_EmptyMeansMatchAll(t *testing.T) {
	assert.True(t, Parse("").IsEmpty())
	assert.False(t, Parse("x").IsEmpty())
}

func TestParse_NoEmptyConditions(t *testing.T) {
	inputs := []string{"&", "&&&", "| & |", "a |", "  & a & ", strings.Repeat("|&", 50)}
	for _, in := range inputs {
		q := Parse(in)
		require.NotEmpty(t, q.Groups, in)
		for _, g := range q.Groups {
			require.NotEmpty(t, g, in)
			for _, c := range g {
				assert.NotEmpty(t, string(c), in)
			}
		}
	}
}

func TestFillOperands_TerminatesOnLongInput(t *testing.T) {
	in := strings.Repeat("& ", 10000)
	out := fillOperands(in)
	assert.True(t, strings.HasPrefix(out, "* &"))
	assert.True(t, strings.HasSuffix(out, " *"))
}

func TestTitleWildcard(t *testing.T) {
	assert.Equal(t, "*rapport_final*", TitleWildcard("rapport final"))
	assert.Equal(t, "***", TitleWildcard(Wildcard))
}

func TestCompile_EmptyIsMatchAll(t *testing.T) {
	_, ok := Compile("", "").(*blevequery.MatchAllQuery)
	assert.True(t, ok)
}

func TestCompile_PathScopeWrapsQuery(t *testing.T) {
	q, ok := Compile("", "42").(*blevequery.ConjunctionQuery)
	require.True(t, ok)
	require.Len(t, q.Conjuncts, 2)

	_, isAll := q.Conjuncts[0].(*blevequery.MatchAllQuery)
	assert.True(t, isAll)

	scope, ok := q.Conjuncts[1].(*blevequery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "42", scope.Term)
	assert.Equal(t, FieldPath, scope.Field())
}

func TestCompile_ConditionShape(t *testing.T) {
	// Given: a single condition
	root, ok := Compile("Rapport Final", "").(*blevequery.DisjunctionQuery)
	require.True(t, ok)
	require.Len(t, root.Disjuncts, 1)

	group, ok := root.Disjuncts[0].(*blevequery.ConjunctionQuery)
	require.True(t, ok)
	require.Len(t, group.Conjuncts, 1)

	cond, ok := group.Conjuncts[0].(*blevequery.DisjunctionQuery)
	require.True(t, ok)
	require.Len(t, cond.Disjuncts, 3)

	// Then: phrase on content, exact term on tags, wildcard on title
	phrase, ok := cond.Disjuncts[0].(*blevequery.MatchPhraseQuery)
	require.True(t, ok)
	assert.Equal(t, "rapport final", phrase.MatchPhrase)
	assert.Equal(t, FieldContent, phrase.Field())

	tag, ok := cond.Disjuncts[1].(*blevequery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "rapport final", tag.Term)
	assert.Equal(t, FieldTags, tag.Field())

	title, ok := cond.Disjuncts[2].(*blevequery.WildcardQuery)
	require.True(t, ok)
	assert.Equal(t, "*rapport_final*", title.Wildcard)
	assert.Equal(t, FieldTitle, title.Field())
}

func TestCompile_GroupsBecomeDisjuncts(t *testing.T) {
	root, ok := Compile("a & b | c", "").(*blevequery.DisjunctionQuery)
	require.True(t, ok)
	require.Len(t, root.Disjuncts, 2)

	first := root.Disjuncts[0].(*blevequery.ConjunctionQuery)
	second := root.Disjuncts[1].(*blevequery.ConjunctionQuery)
	assert.Len(t, first.Conjuncts, 2)
	assert.Len(t, second.Conjuncts, 1)
}
