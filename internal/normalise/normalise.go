// Package normalise canonicalises free-text names and titles for matching.
// All functions are pure and deterministic: identical input always yields
// identical output, which the search index relies on for reproducible
// rebuilds.
package normalise

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalise lower-cases the text, strips diacritics ("ä" becomes "a"),
// collapses internal whitespace and trims. Idempotent.
func Normalise(text string) string {
	text = strings.ToLower(text)

	// Decompose, drop combining marks, recompose. The transformer keeps
	// internal state, so it is built per call rather than shared.
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripper, text); err == nil {
		text = stripped
	}

	return strings.Join(strings.Fields(text), " ")
}

// Tokenise splits normalised text into word-like units on whitespace and
// punctuation, dropping empty tokens.
func Tokenise(text string) []string {
	return strings.FieldsFunc(Normalise(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
