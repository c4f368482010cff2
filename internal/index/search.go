package index

import (
	"strings"
	"unicode"
)

const defaultSearchLimit = 20

// searchTerms splits a user query into bare terms. Operators and quoting
// are not supported; punctuation separates terms.
func searchTerms(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func searchLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	return limit
}
