// Package normalize canonicalizes free text for comparison and hashing.
//
// The transform is a versioned contract: fingerprints are derived from its
// output, so any change here invalidates previously stored fingerprints.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes non-spacing combining marks after NFKD decomposition,
// which drops diacritics and folds fullwidth forms to their ASCII equivalents.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Text normalizes a string for stable comparison:
// NFKD compatibility decomposition, combining-mark removal, locale-independent
// lower-casing, whitespace runs collapsed to a single space, trimmed.
// Blank input yields "".
func Text(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	decomposed, _, err := transform.String(stripMarks, input)
	if err != nil {
		// Malformed UTF-8 sequences are passed through undecomposed rather
		// than dropped; the input is still lower-cased and collapsed.
		decomposed = input
	}

	lower := strings.ToLower(decomposed)
	return strings.Join(strings.Fields(lower), " ")
}

// TextOrRaw normalizes input, falling back to the trimmed raw value when
// normalization collapses non-blank content to nothing. Used by ingestion so
// a review body is never silently dropped.
func TextOrRaw(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if n := Text(input); n != "" {
		return n
	}
	return trimmed
}
