package nlp

import (
	"strings"
	"unicode"
)

// SplitCamelCase splits camelCase and PascalCase words.
// Examples:
//   - "rapportFinal" -> ["rapport", "Final"]
//   - "PDFExport" -> ["PDF", "Export"]
//   - "ServiceRH" -> ["Service", "RH"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// Split before an upper rune that ends a lower run or starts a new word
			if (prevIsLower || nextIsLower) && current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// Chunks cuts text into pieces of at most size runes. Cuts land on the last
// whitespace inside the window; a window without whitespace is cut hard.
// The whitespace at a cut is dropped. Empty input yields no chunks.
func Chunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := -1
		for i := end; i > start; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}

		if cut < 0 {
			chunks = append(chunks, string(runes[start:end]))
			start = end
			continue
		}
		chunks = append(chunks, string(runes[start:cut]))
		start = cut + 1
	}
	return chunks
}
