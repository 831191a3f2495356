package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenize splits s into normalized tokens for full-text matching.
//
// Normalization is language agnostic: NFC composition, Unicode case
// folding, then splitting on every rune that is neither a letter nor a
// digit. Combining marks stay attached to their token. Query text and
// indexed text go through the same function.
func Tokenize(s string) []string {
	// A Caser is stateful; one per call.
	folded := cases.Fold().String(norm.NFC.String(s))
	return strings.FieldsFunc(folded, isSeparator)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
}
