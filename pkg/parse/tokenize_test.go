package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Empty", "", []string{}},
		{"WhitespaceOnly", " \t\n ", []string{}},
		{"SingleWord", "Heat", []string{"Heat"}},
		{"CasePreserved", "The Godfather", []string{"The", "Godfather"}},
		{"RunsOfWhitespace", "  Jane   Doe\t\tII \n", []string{"Jane", "Doe", "II"}},
		{"UnicodeWhitespace", "Am\u00e9lie\u00a0Poulain\u2003Paris", []string{"Am\u00e9lie", "Poulain", "Paris"}},
		{"PunctuationKept", "Spider-Man: No Way Home", []string{"Spider-Man:", "No", "Way", "Home"}},
		{"DuplicatesKept", "New York New York", []string{"New", "York", "New", "York"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Tokenize(tt.input)
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, result)
		})
	}
}
