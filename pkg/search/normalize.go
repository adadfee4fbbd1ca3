package search

import (
	"strings"
	"unicode"
)

// maxQueryTerms caps how many normalized terms feed the keyword leg.
const maxQueryTerms = 10

// NormalizeQuery turns free-form query text into the AND-combined term list
// used by the keyword leg: lowercased, whitespace-split, stripped of
// non-word characters, empties dropped, capped at maxQueryTerms.
func NormalizeQuery(text string) []string {
	fields := strings.Fields(strings.ToLower(text))

	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		term := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, field)
		if term == "" {
			continue
		}
		terms = append(terms, term)
		if len(terms) == maxQueryTerms {
			break
		}
	}

	if len(terms) == 0 {
		return nil
	}
	return terms
}
