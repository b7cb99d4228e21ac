package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/french"
)

// Lemmatizer reduces a single word to its base form.
type Lemmatizer interface {
	Lemma(word string) string
}

// LemmatizerFunc adapts a function to Lemmatizer.
type LemmatizerFunc func(word string) string

// Lemma implements Lemmatizer.
func (f LemmatizerFunc) Lemma(word string) string { return f(word) }

// FrenchStemmer lemmatizes with the Snowball French stemmer.
//
// Lowercase and capitalized words are lowercased and stemmed. Words with
// inner capitals (acronyms, camelCase identifiers) are returned unchanged so
// Clean can still split them.
type FrenchStemmer struct{}

// Lemma implements Lemmatizer.
func (FrenchStemmer) Lemma(word string) string {
	if word == "" || hasInnerUpper(word) {
		return word
	}
	env := snowballstem.NewEnv(strings.ToLower(word))
	french.Stem(env)
	return env.Current()
}

func hasInnerUpper(word string) bool {
	for i, r := range []rune(word) {
		if i > 0 && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// lemmatizeChunk applies l to every word of chunk. Punctuation glued to a
// word is kept around the lemma; words are joined with a single space.
func lemmatizeChunk(chunk string, l Lemmatizer) string {
	fields := strings.Fields(chunk)
	for i, f := range fields {
		start := strings.IndexFunc(f, isWordRune)
		if start < 0 {
			continue
		}
		end := strings.LastIndexFunc(f, isWordRune)
		_, size := utf8.DecodeRuneInString(f[end:])
		end += size
		fields[i] = f[:start] + l.Lemma(f[start:end]) + f[end:]
	}
	return strings.Join(fields, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
