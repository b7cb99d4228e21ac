// Package fold maps text to the accent-free lowercase form used for both
// indexing and querying, so "Évaluation" and "evaluation" meet.
package fold

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Fold transliterates s to ASCII and lowercases it.
func Fold(s string) string {
	if isLowerASCII(s) {
		return s
	}
	return strings.ToLower(unidecode.Unidecode(s))
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || (c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
