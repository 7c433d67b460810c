// Package trigram computes pg_trgm compatible trigram similarity so catalog
// matching behaves the same on engines without the extension.
package trigram

import (
	"strings"
	"unicode"
)

// Set extracts the distinct trigrams of s. Words are runs of letters and
// digits, lowercased, padded with two leading blanks and one trailing blank.
func Set(s string) map[string]struct{} {
	out := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
	}
	return out
}

// Similarity returns |A∩B| / |A∪B| over the trigram sets of a and b, in [0, 1].
func Similarity(a, b string) float64 {
	return SetSimilarity(Set(a), Set(b))
}

// SetSimilarity is Similarity over precomputed sets.
func SetSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
