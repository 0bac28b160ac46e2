package parse

import "strings"

// Tokenize splits text into terms on runs of Unicode whitespace.
// Case is preserved; the index lowercases on its own. Empty or blank input gives an empty, non-nil slice.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	if fields == nil {
		return []string{}
	}
	return fields
}
