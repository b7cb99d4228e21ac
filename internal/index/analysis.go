package index

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/Aman-CERP/docsearch/internal/fold"
	"github.com/Aman-CERP/docsearch/internal/query"
)

const (
	// FoldFilterName transliterates and lowercases every token.
	FoldFilterName = "docsearch_fold"

	// TitleFilterName folds a whole title and joins its words with "_".
	TitleFilterName = "docsearch_title_term"

	// TagTokenizerName splits a comma-joined tag list.
	TagTokenizerName = "docsearch_tag_split"

	ContentAnalyzerName = "docsearch_content"
	TitleAnalyzerName   = "docsearch_title"
	TagsAnalyzerName    = "docsearch_tags"
)

func init() {
	_ = registry.RegisterTokenFilter(FoldFilterName, foldFilterConstructor)
	_ = registry.RegisterTokenFilter(TitleFilterName, titleFilterConstructor)
	_ = registry.RegisterTokenizer(TagTokenizerName, tagTokenizerConstructor)
}

// newIndexMapping builds the fixed schema. Unknown fields are ignored.
func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	analyzers := map[string]map[string]interface{}{
		ContentAnalyzerName: {
			"type":          custom.Name,
			"tokenizer":     bleveunicode.Name,
			"token_filters": []string{FoldFilterName},
		},
		TitleAnalyzerName: {
			"type":          custom.Name,
			"tokenizer":     single.Name,
			"token_filters": []string{TitleFilterName},
		},
		TagsAnalyzerName: {
			"type":          custom.Name,
			"tokenizer":     TagTokenizerName,
			"token_filters": []string{FoldFilterName},
		},
	}
	for name, def := range analyzers {
		if err := im.AddCustomAnalyzer(name, def); err != nil {
			return nil, err
		}
	}

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	doc.AddFieldMappingsAt(query.FieldID, storedField(keyword.Name, false))
	doc.AddFieldMappingsAt(query.FieldTitle, storedField(TitleAnalyzerName, false))
	doc.AddFieldMappingsAt(query.FieldContent, storedField(ContentAnalyzerName, true))
	doc.AddFieldMappingsAt(query.FieldPath, storedField(keyword.Name, false))
	doc.AddFieldMappingsAt(query.FieldTags, storedField(TagsAnalyzerName, false))

	im.DefaultMapping = doc
	im.DefaultAnalyzer = ContentAnalyzerName
	return im, nil
}

func storedField(analyzer string, termVectors bool) *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = analyzer
	fm.Store = true
	fm.IncludeInAll = false
	fm.IncludeTermVectors = termVectors
	return fm
}

func foldFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return foldFilter{}, nil
}

// foldFilter implements analysis.TokenFilter with fold.Fold.
type foldFilter struct{}

// Filter implements analysis.TokenFilter.
func (foldFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, tok := range input {
		tok.Term = []byte(fold.Fold(string(tok.Term)))
	}
	return input
}

func titleFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return titleFilter{}, nil
}

// titleFilter turns "Rapport Final 2023.pdf" into "rapport_final_2023.pdf".
type titleFilter struct{}

// Filter implements analysis.TokenFilter.
func (titleFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, tok := range input {
		tok.Term = []byte(TitleTerm(string(tok.Term)))
	}
	return input
}

// TitleTerm is the single indexed term for a title.
func TitleTerm(title string) string {
	return strings.Join(strings.Fields(fold.Fold(title)), "_")
}

func tagTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return tagTokenizer{}, nil
}

// tagTokenizer emits one token per non-empty comma-separated tag.
type tagTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (tagTokenizer) Tokenize(input []byte) analysis.TokenStream {
	var out analysis.TokenStream
	pos := 1
	start := 0
	for i := 0; i <= len(input); i++ {
		if i < len(input) && input[i] != ',' {
			continue
		}
		seg := input[start:i]
		lead := len(seg) - len(strings.TrimLeftFunc(string(seg), unicode.IsSpace))
		term := strings.TrimSpace(string(seg))
		if term != "" {
			out = append(out, &analysis.Token{
				Term:     []byte(term),
				Start:    start + lead,
				End:      start + lead + len(term),
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
		}
		start = i + 1
	}
	return out
}
