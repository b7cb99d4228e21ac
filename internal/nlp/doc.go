// Package nlp normalizes extracted document text into lexical tokens.
//
// Three operations are exposed through Processor:
//
//   - Clean drops noise (URLs, e-mail addresses, numbers, currency, stop
//     words, short tokens) and returns folded tokens in reading order.
//   - Lemmatize reduces every word to its lemma and returns the text.
//   - Tokenize lemmatizes, cleans and returns distinct tokens ordered by
//     descending frequency.
//
// Large inputs are cut into whitespace-aligned chunks that are processed on
// a bounded worker pool. Chunk results are merged in chunk order, so output
// never depends on scheduling.
package nlp
